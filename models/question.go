package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeFillInTheBlank = "fill_in_the_blank"
)

type Question struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	CategoryID uint   `json:"category_id" gorm:"not null;index"`
	Type       string `json:"type" gorm:"not null;default:'multiple_choice'"`
	Text       string `json:"text" gorm:"not null"`
	Image      string `json:"image"`

	// Answer key for fill_in_the_blank questions. Never serialized to clients.
	Answer string `json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Category Category `json:"category,omitempty"`
	Options  []Option `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}

// CorrectOptionID returns the id of the correct option, or 0 for
// fill_in_the_blank questions.
func (q *Question) CorrectOptionID() uint {
	for _, option := range q.Options {
		if option.IsCorrect {
			return option.ID
		}
	}
	return 0
}
