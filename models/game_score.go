package models

import (
	"time"

	"gorm.io/gorm"
)

type GameScore struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	GameRecordID uint           `json:"game_record_id" gorm:"not null;index"`
	PlayerID     string         `json:"player_id" gorm:"not null"`
	Nickname     string         `json:"nickname" gorm:"not null"`
	Score        int            `json:"score" gorm:"not null"`
	Rank         int            `json:"rank" gorm:"not null"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
