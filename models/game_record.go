package models

import (
	"time"

	"gorm.io/gorm"
)

// GameRecord is the durable trace of a finished game session. Live room
// state never touches the database; a record is written once, when the
// room reaches game over.
type GameRecord struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	RoomCode  string         `json:"room_code" gorm:"index;not null"`
	Category  string         `json:"category" gorm:"not null"`
	HostID    string         `json:"host_id" gorm:"not null"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Scores []GameScore `json:"scores,omitempty" gorm:"foreignKey:GameRecordID"`
}
