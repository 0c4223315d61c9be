package services

import (
	"context"
	"errors"
	"strings"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/config"
	"github.com/woodraft/draftauth/internal/server/metrics"
	"github.com/woodraft/draftauth/internal/server/models"
	"github.com/woodraft/draftauth/internal/server/repositories/repomanager"
	"github.com/woodraft/draftauth/internal/server/repositories/users"
)

// RegistrationService turns an INVITED record into a verified account.
type RegistrationService struct {
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	config      *config.Config
	logger      logging.Logger
	metrics     *metrics.Metrics
}

func NewRegistrationService(m repomanager.RepositoryManager, h PasswordHasher, cfg *config.Config, logger logging.Logger, mt *metrics.Metrics) *RegistrationService {
	return &RegistrationService{repomanager: m, hasher: h, config: cfg, logger: logger, metrics: mt}
}

// Register redeems token. It fails with common.ErrInvalidInviteToken when
// no user holds the token (never issued or already redeemed) and with
// common.ErrAlreadyRegistered when the holder is verified. Admin rights are
// granted only to emails on the configured allow-list.
func (s *RegistrationService) Register(ctx context.Context, token, name, email, password string) (*models.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)

	if _, err := s.holder(ctx, s.repomanager.Users(), token); err != nil {
		s.count(err)
		return nil, err
	}

	// Hash before the transaction so no connection is held during bcrypt.
	hash, err := s.hasher.HashPassword(ctx, password)
	if err != nil {
		s.count(err)
		return nil, err
	}

	var registered *models.User
	err = s.repomanager.RunInTx(ctx, func(ctx context.Context, repo users.Repository) error {
		user, err := s.holder(ctx, repo, token)
		if err != nil {
			return err
		}

		user.Name = name
		user.Email = email
		user.PasswordHash = &hash
		user.InviteToken = nil
		user.IsVerified = true
		user.IsAdmin = user.IsAdmin || s.config.IsAdminEmail(email)

		if err := repo.CompleteRegistration(ctx, user, token); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrInvalidInviteToken
			}
			return err
		}
		registered = user
		return nil
	})
	if err != nil {
		s.count(err)
		return nil, err
	}

	s.metrics.RegistrationsTotal.WithLabelValues(metrics.StatusOK).Inc()
	s.logger.Info(ctx, "coach registered", "user_id", registered.ID.String(), "admin", registered.IsAdmin)
	return registered, nil
}

// holder returns the user holding token in INVITED state.
func (s *RegistrationService) holder(ctx context.Context, repo users.Repository, token string) (*models.User, error) {
	user, err := repo.FindByInviteToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidInviteToken
		}
		return nil, err
	}
	if user.IsVerified {
		return nil, common.ErrAlreadyRegistered
	}
	return user, nil
}

func (s *RegistrationService) count(err error) {
	switch {
	case errors.Is(err, common.ErrInvalidInviteToken),
		errors.Is(err, common.ErrAlreadyRegistered),
		errors.Is(err, common.ErrDuplicateEmail):
		s.metrics.RegistrationsTotal.WithLabelValues(metrics.StatusRejected).Inc()
	default:
		s.metrics.RegistrationsTotal.WithLabelValues(metrics.StatusError).Inc()
	}
}
