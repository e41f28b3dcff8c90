package services

import (
	"context"

	"quizroom/models"

	"gorm.io/gorm"
)

// GameRecorder persists the final outcome of a game session.
type GameRecorder interface {
	RecordGame(ctx context.Context, record *models.GameRecord) error
}

type dbGameRecorder struct {
	db *gorm.DB
}

func NewGameRecorder(db *gorm.DB) GameRecorder {
	return &dbGameRecorder{db: db}
}

func (r *dbGameRecorder) RecordGame(ctx context.Context, record *models.GameRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}
