package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserStats is the per-user gamification state. Date fields hold local
// calendar dates as YYYY-MM-DD strings; streak and points only move when
// the full exercise catalog is completed on a single day.
type UserStats struct {
	ID                string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            string         `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Streak            int            `gorm:"not null;default:0" json:"streak"`
	TotalPoints       int            `gorm:"not null;default:0" json:"total_points"`
	LastCompletedDate string         `gorm:"size:10" json:"last_completed_date,omitempty"` // Last day the full catalog was completed
	CompletedToday    []string       `gorm:"serializer:json" json:"completed_today"`
	LastExerciseDate  string         `gorm:"size:10" json:"last_exercise_date,omitempty"` // Day the completed-today set belongs to
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (s *UserStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
