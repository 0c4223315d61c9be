package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/auth"
	"github.com/woodraft/draftauth/internal/server/metrics"
	"github.com/woodraft/draftauth/internal/server/models"
	"github.com/woodraft/draftauth/internal/server/repositories/repomanager"
)

// TokenCodec issues and decodes bearer tokens.
type TokenCodec interface {
	TokenIssuer
	DecodeToken(token string) (*auth.Claims, error)
}

// AuthService provides authentication-related operations:
// - Login: verify credentials and mint a bearer token
// - VerifySession: resolve a bearer token to a live, verified user
// - ListCoachStatus: registration progress of every coach
type AuthService struct {
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	tokens      TokenCodec
	logger      logging.Logger
	metrics     *metrics.Metrics
}

// NewAuthService constructs an AuthService.
func NewAuthService(m repomanager.RepositoryManager, h PasswordHasher, tokens TokenCodec, logger logging.Logger, mt *metrics.Metrics) *AuthService {
	return &AuthService{repomanager: m, hasher: h, tokens: tokens, logger: logger, metrics: mt}
}

// Login verifies the password of the user with the given email
// (case-insensitive) and returns a bearer token. Unknown email, missing
// password and wrong password all yield common.ErrInvalidCredentials and
// cost one bcrypt comparison each.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	repo := s.repomanager.Users()

	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.BurnVerify(ctx, password)
			return "", s.reject(ctx, "unknown email", email)
		}
		s.metrics.LoginsTotal.WithLabelValues(metrics.StatusError).Inc()
		return "", err
	}

	if !user.HasPassword() {
		s.hasher.BurnVerify(ctx, password)
		return "", s.reject(ctx, "no password set", email)
	}

	if !s.hasher.VerifyPassword(ctx, password, *user.PasswordHash) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", s.reject(ctx, "password mismatch", email)
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		s.metrics.LoginsTotal.WithLabelValues(metrics.StatusError).Inc()
		return "", err
	}

	s.metrics.LoginsTotal.WithLabelValues(metrics.StatusOK).Inc()
	s.logger.Info(ctx, "login succeeded", "user_id", user.ID.String())
	return token, nil
}

// reject logs the reason server-side only.
func (s *AuthService) reject(ctx context.Context, reason, email string) error {
	s.metrics.LoginsTotal.WithLabelValues(metrics.StatusRejected).Inc()
	s.logger.Warn(ctx, "login rejected", "reason", reason, "email", email)
	return common.ErrInvalidCredentials
}

// VerifySession decodes token and re-reads the user it names; claims other
// than the subject are not trusted. It fails with common.ErrUnauthenticated
// for a bad token or a vanished user and with common.ErrForbidden for an
// unverified one.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.DecodeToken(token)
	if err != nil {
		s.logger.Debug(ctx, "token rejected", "error", err)
		return nil, common.ErrUnauthenticated
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.logger.Warn(ctx, "token subject is not a user id", "sub", claims.Subject)
		return nil, common.ErrUnauthenticated
	}

	user, err := s.repomanager.Users().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "token names unknown user", "user_id", id.String())
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}

	if !user.IsVerified {
		s.logger.Warn(ctx, "unverified user presented a token", "user_id", id.String())
		return nil, common.ErrForbidden
	}

	return user, nil
}

// RequireAdmin fails with common.ErrForbidden unless user is an admin.
func (s *AuthService) RequireAdmin(user *models.User) (*models.User, error) {
	if user == nil || !user.IsAdmin {
		return nil, common.ErrForbidden
	}
	return user, nil
}

// ListCoachStatus returns every non-admin user with its derived status.
func (s *AuthService) ListCoachStatus(ctx context.Context) ([]models.CoachStatus, error) {
	list, err := s.repomanager.Users().ListNonAdmin(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.CoachStatus, 0, len(list))
	for _, u := range list {
		out = append(out, models.NewCoachStatus(u))
	}
	return out, nil
}
