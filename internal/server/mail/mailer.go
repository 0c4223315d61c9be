// Package mail renders and delivers outgoing e-mail. Backends: SMTP with
// STARTTLS, Amazon SES (v2 API) and a logging backend for development.
package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/config"
)

// Message is a plain-text e-mail to a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

const invitationSubject = "You're invited to join the draft!"

// InviteLink is the frontend URL a coach follows to register.
func InviteLink(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/invite/" + token
}

// InvitationMessage renders the invitation sent to a newly invited coach.
func InvitationMessage(frontendURL, name, email, token string) Message {
	return Message{
		To:      email,
		Subject: invitationSubject,
		Body: fmt.Sprintf("Hi %s,\n\nClick this link to set up your account and join the draft:\n%s\n",
			name, InviteLink(frontendURL, token)),
	}
}

// New builds the Mailer selected by cfg.MailBackend.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (Mailer, error) {
	switch cfg.MailBackend {
	case config.MailBackendSMTP:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.Sender()).
			AllowPlaintext(cfg.SMTPAllowPlaintext), nil
	case config.MailBackendSES:
		return NewSESMailer(ctx, SESOptions{
			Region:          cfg.SESRegion,
			Endpoint:        cfg.SESEndpoint,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
			From:            cfg.Sender(),
		})
	case config.MailBackendLog:
		return NewLogMailer(logger), nil
	default:
		return nil, oops.Code("MAIL_BACKEND_UNKNOWN").With("backend", cfg.MailBackend).Errorf("unknown mail backend")
	}
}
