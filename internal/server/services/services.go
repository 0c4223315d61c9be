// Package services contains server-side business logic: invitations,
// invite-gated registration, login, session verification and the admin
// bootstrap run at startup.
package services

import (
	"context"

	"github.com/woodraft/draftauth/internal/server/mail"
	"github.com/woodraft/draftauth/internal/server/models"
)

// MailQueue accepts messages for background delivery.
type MailQueue interface {
	Enqueue(msg mail.Message) error
}

// PasswordHasher is the password half of the credential codec.
type PasswordHasher interface {
	HashPassword(ctx context.Context, plaintext string) (string, error)
	VerifyPassword(ctx context.Context, plaintext, hash string) bool
	BurnVerify(ctx context.Context, plaintext string)
}

// TokenIssuer is the bearer-token half of the credential codec.
type TokenIssuer interface {
	IssueToken(user *models.User) (string, error)
}
