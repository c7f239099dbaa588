package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken means no bearer credential was presented at all.
	ErrNoToken = errors.New("auth: access token required")
	// ErrInvalidToken covers every presented credential that failed verification.
	ErrInvalidToken   = errors.New("auth: invalid or expired token")
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)

	// ErrUnauthenticated means an authorization check ran without an identity in context.
	ErrUnauthenticated  = errors.New("auth: user not authenticated")
	ErrInsufficientRole = errors.New("auth: insufficient permissions")

	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrAlreadyExists      = errors.New("auth: already exists")
	ErrNotFound           = errors.New("auth: not found")
	ErrValidation         = errors.New("auth: validation failed")
)
