package mail

import (
	"context"

	"github.com/woodraft/draftauth/internal/logging"
)

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info(ctx, "mail not sent, log backend", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
