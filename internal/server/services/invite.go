package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/config"
	"github.com/woodraft/draftauth/internal/server/mail"
	"github.com/woodraft/draftauth/internal/server/metrics"
	"github.com/woodraft/draftauth/internal/server/models"
	"github.com/woodraft/draftauth/internal/server/repositories/repomanager"
)

// tokenAttempts bounds regeneration after an invite token collision.
const tokenAttempts = 3

// InviteService creates INVITED records and queues the invitation mail.
type InviteService struct {
	repomanager repomanager.RepositoryManager
	mail        MailQueue
	config      *config.Config
	logger      logging.Logger
	metrics     *metrics.Metrics
	newToken    func() string
}

func NewInviteService(m repomanager.RepositoryManager, q MailQueue, cfg *config.Config, logger logging.Logger, mt *metrics.Metrics) *InviteService {
	return &InviteService{
		repomanager: m,
		mail:        q,
		config:      cfg,
		logger:      logger,
		metrics:     mt,
		newToken:    uuid.NewString,
	}
}

// Invite records a new coach and sends them a registration link. It fails
// with common.ErrDuplicateEmail if any user already has the email. Mail
// problems are logged and never fail the call.
func (s *InviteService) Invite(ctx context.Context, name, email string) (*models.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)

	user, err := s.createInvited(ctx, &models.User{Name: name, Email: email})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			s.metrics.InvitesTotal.WithLabelValues(metrics.StatusRejected).Inc()
			s.logger.Info(ctx, "invite rejected, email already present", "email", email)
		} else {
			s.metrics.InvitesTotal.WithLabelValues(metrics.StatusError).Inc()
		}
		return nil, err
	}

	s.metrics.InvitesTotal.WithLabelValues(metrics.StatusOK).Inc()
	s.logger.Info(ctx, "coach invited", "user_id", user.ID.String(), "email", email)
	s.sendInvitation(ctx, user)

	return user, nil
}

// createInvited inserts user in INVITED state with a fresh token. The
// pre-check only saves a doomed insert; the unique index decides races.
func (s *InviteService) createInvited(ctx context.Context, user *models.User) (*models.User, error) {
	repo := s.repomanager.Users()

	if _, err := repo.FindByEmail(ctx, user.Email); err == nil {
		return nil, common.ErrDuplicateEmail
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	var err error
	for range tokenAttempts {
		token := s.newToken()
		user.InviteToken = &token

		var created *models.User
		created, err = repo.Create(ctx, user)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, common.ErrDuplicateToken) {
			return nil, err
		}
		s.logger.Warn(ctx, "invite token collision, regenerating")
	}
	return nil, err
}

func (s *InviteService) sendInvitation(ctx context.Context, user *models.User) {
	if user.InviteToken == nil {
		return
	}
	msg := mail.InvitationMessage(s.config.FrontendURL, user.Name, user.Email, *user.InviteToken)
	if err := s.mail.Enqueue(msg); err != nil {
		s.logger.Error(ctx, "invitation not queued",
			"email", user.Email, "error", errors.Join(common.ErrMailDeliveryFailed, err))
	}
}
