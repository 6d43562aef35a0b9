package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdentifierKind says whether a rate-limit subject is a user account
// or a raw network address.
type IdentifierKind string

const (
	KindUser IdentifierKind = "user"
	KindIP   IdentifierKind = "ip"
)

type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusWarned    AccountStatus = "warned"
	StatusSuspended AccountStatus = "suspended"
	StatusBanned    AccountStatus = "banned"
)

// Blocked reports whether the status gates all further actions.
// suspended and banned are sticky: automatic logic never clears them.
func (s AccountStatus) Blocked() bool {
	return s == StatusSuspended || s == StatusBanned
}

type Account struct {
	ID           uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	Identifier   string        `gorm:"uniqueIndex;not null" json:"identifier"`
	PlanTier     string        `gorm:"default:'free'" json:"plan_tier"`
	Status       AccountStatus `gorm:"default:'active';index" json:"status"`
	StatusReason string        `json:"status_reason,omitempty"`
	SuspendedAt  *time.Time    `json:"suspended_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (Account) TableName() string {
	return "accounts"
}
