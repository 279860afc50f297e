package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Federated provider errors
	ErrProviderNoEmail = errors.New("provider account has no email address")
)
