package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Call mirrors a call that took place on the external voice platform.
// The sync poller owns call metadata; the save endpoint only attaches a user.
type Call struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID   string         `gorm:"uniqueIndex;not null" json:"external_id"`
	UserID       *string        `gorm:"type:uuid;index" json:"user_id,omitempty"` // NULL until a user claims the call
	Duration     int            `json:"duration"`                                 // Duration in seconds
	RecordingURL string         `gorm:"size:500" json:"recording_url,omitempty"`
	Cost         float64        `json:"cost"`
	StartedAt    time.Time      `json:"started_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Report *Report `gorm:"foreignKey:CallID;references:ExternalID" json:"report,omitempty"`
}

func (c *Call) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// Sentiment classifications produced by the call analysis.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

// Report is the AI-generated analysis of one call. The unique index on
// CallID enforces at most one report per call at the database level.
type Report struct {
	ID               string         `gorm:"type:uuid;primaryKey" json:"id"`
	CallID           string         `gorm:"not null;uniqueIndex" json:"call_id"` // External call id
	Sentiment        string         `gorm:"size:20;not null;check:sentiment IN ('Positive', 'Neutral', 'Negative')" json:"sentiment"`
	Confidence       float64        `gorm:"not null" json:"confidence"`          // 0-100
	Vocabulary       float64        `gorm:"not null" json:"vocabulary"`          // 0-100
	UserTalkPct      float64        `gorm:"not null" json:"user_talk_pct"`       // Caller share of speaking time
	AssistantTalkPct float64        `gorm:"not null" json:"assistant_talk_pct"`  // Callee share of speaking time
	ImprovementAreas []string       `gorm:"serializer:json" json:"improvement_areas"`
	Transcript       string         `gorm:"type:text" json:"transcript,omitempty"`
	Degraded         bool           `gorm:"default:false" json:"degraded"` // True when the neutral fallback was substituted
	DegradedReason   string         `gorm:"size:255" json:"degraded_reason,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
