package models

import (
	"time"
)

// Zap status constants
const (
	ZapStatusDraft  = "draft"
	ZapStatusActive = "active"
)

// Zap represents a user-owned automation. It is created in draft status and
// becomes active once a provider token has been stored for it.
type Zap struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"index;not null" json:"userId"`
	Name   string `gorm:"not null" json:"name"`
	Status string `gorm:"not null;default:'draft'" json:"status"` // "draft" or "active"

	Trigger *Trigger `gorm:"constraint:OnDelete:CASCADE" json:"trigger,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsActive returns true once the zap has a linked provider token
func (z *Zap) IsActive() bool {
	return z.Status == ZapStatusActive
}

// Trigger holds the event type that starts a zap. Only the type is modeled;
// trigger parameters and execution are out of scope.
type Trigger struct {
	ID    string `gorm:"primaryKey" json:"id"`
	ZapID string `gorm:"uniqueIndex;not null" json:"zapId"`
	Type  string `gorm:"not null" json:"type"` // e.g. "gmail"

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
