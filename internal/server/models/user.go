// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a coach or administrator account. A record starts INVITED (token
// set, no password), becomes REGISTERED when the token is redeemed, and is
// never deleted.
type User struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash *string   `db:"password_hash"`
	IsVerified   bool      `db:"is_verified"`
	IsAdmin      bool      `db:"is_admin"`
	InviteToken  *string   `db:"invite_token"`
	CreatedAt    time.Time `db:"created_at"`
}

// HasPassword reports whether a password hash has been set.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Status derives the coach status shown to administrators.
func (u *User) Status() Status {
	switch {
	case u.IsVerified:
		return StatusVerified
	case u.HasPassword():
		return StatusSignedUp
	default:
		return StatusInvited
	}
}

// Status is the registration progress of a coach.
type Status string

const (
	StatusInvited  Status = "Invited"
	StatusSignedUp Status = "Signed Up"
	StatusVerified Status = "Verified"
)

// CoachStatus is one row of the coach listing.
type CoachStatus struct {
	ID         uuid.UUID
	Name       string
	Email      string
	Status     Status
	IsVerified bool
	CreatedAt  time.Time
}

// NewCoachStatus projects a user onto its listing row.
func NewCoachStatus(u *User) CoachStatus {
	return CoachStatus{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Status:     u.Status(),
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}
