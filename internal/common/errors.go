// Package common defines shared constants and sentinel errors used across
// the identity service layers. Callers should use errors.Is to match these
// values; lower layers wrap them with context, the HTTP layer maps them to
// status codes.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("user already invited or registered")
	ErrDuplicateToken = errors.New("invite token already in use")
	ErrPersistence    = errors.New("persistence failure")

	// Invitation and registration errors.
	ErrInvalidInviteToken = errors.New("invalid invite token")
	ErrAlreadyRegistered  = errors.New("user already registered")

	// Authentication errors. ErrInvalidCredentials covers unknown email,
	// missing password and password mismatch alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("could not validate credentials")
	ErrForbidden          = errors.New("forbidden")

	// Token codec errors (bad signature, expired, malformed).
	ErrInvalidToken = errors.New("invalid token")

	// Side channel errors, logged only.
	ErrMailDeliveryFailed = errors.New("mail delivery failed")
	ErrQueueFull          = errors.New("dispatch queue is full")
	ErrDispatcherStopped  = errors.New("dispatcher stopped")

	// Input errors.
	ErrValidation = errors.New("validation error")
)
