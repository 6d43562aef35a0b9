package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AbuseEventType string

const (
	EventSuspiciousActivity AbuseEventType = "suspicious_activity"
	EventWarningThreshold   AbuseEventType = "warning_threshold"
	EventAutoSuspension     AbuseEventType = "auto_suspension"
)

// AbuseEvent is the audit record written whenever the heuristics flag an
// identifier or the engine suspends an account.
type AbuseEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Identifier string         `gorm:"index" json:"identifier"`
	Kind       IdentifierKind `json:"kind"`
	EventType  AbuseEventType `gorm:"index" json:"event_type"`
	Reasons    string         `json:"reasons"`
	Severity   string         `json:"severity"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (e *AbuseEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (AbuseEvent) TableName() string {
	return "abuse_events"
}
