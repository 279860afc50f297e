package models

import (
	"time"
)

// ProviderToken stores the OAuth credential pair linking a zap to an external
// account. At most one token exists per zap; the linking callback upserts it.
type ProviderToken struct {
	ID    string `gorm:"primaryKey"`
	ZapID string `gorm:"uniqueIndex;not null"`

	Provider string `gorm:"not null"` // "gmail"

	// Token storage (should be encrypted in production)
	AccessToken  string `gorm:"type:text"`
	RefreshToken string `gorm:"type:text"` // May be empty: providers omit it on repeat consent
	ExpiresAt    time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsValid reports whether the token's expiry is strictly in the future.
func (t *ProviderToken) IsValid(now time.Time) bool {
	return t.ExpiresAt.After(now)
}

// TableName overrides the default pluralization
func (ProviderToken) TableName() string {
	return "provider_tokens"
}
