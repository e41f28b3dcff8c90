package services

import (
	"context"
	"errors"
	"fmt"

	"quizroom/models"

	"gorm.io/gorm"
)

// QuestionBank supplies the fixed-size question deck for one game.
type QuestionBank interface {
	Questions(ctx context.Context, category string) ([]models.Question, error)
}

type dbQuestionBank struct {
	db *gorm.DB
}

func NewQuestionBank(db *gorm.DB) QuestionBank {
	return &dbQuestionBank{db: db}
}

func (b *dbQuestionBank) Questions(ctx context.Context, category string) ([]models.Question, error) {
	var cat models.Category
	if err := b.db.WithContext(ctx).Where("name = ?", category).First(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown category %q", ErrQuestionBank, category)
		}
		return nil, fmt.Errorf("%w: %v", ErrQuestionBank, err)
	}

	var questions []models.Question
	err := b.db.WithContext(ctx).
		Where("category_id = ?", cat.ID).
		Order("RANDOM()").
		Limit(QuestionsPerGame).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.order ASC")
		}).
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuestionBank, err)
	}
	if len(questions) < QuestionsPerGame {
		return nil, fmt.Errorf("%w: category %q has %d questions, need %d",
			ErrQuestionBank, category, len(questions), QuestionsPerGame)
	}
	return questions, nil
}
