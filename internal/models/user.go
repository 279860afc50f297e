package models

import (
	"time"
)

type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"` // Email is unique and required
	PasswordHash string // OAuth-only users have empty password
	FirstName    string
	LastName     string
	AvatarURL    string // From federated profile, if any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName returns the user's display name
func (u *User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Email
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// IsOAuthOnly returns true if the user has no local password
func (u *User) IsOAuthOnly() bool {
	return u.PasswordHash == ""
}
