package services

import (
	"context"
	"errors"
	"strings"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/config"
	"github.com/woodraft/draftauth/internal/server/mail"
	"github.com/woodraft/draftauth/internal/server/models"
	"github.com/woodraft/draftauth/internal/server/repositories/repomanager"
)

// BootstrapService makes sure every configured admin email can reach an
// admin account, so a fresh deployment is not locked out of invitations.
type BootstrapService struct {
	repomanager repomanager.RepositoryManager
	invites     *InviteService
	config      *config.Config
	logger      logging.Logger
}

func NewBootstrapService(m repomanager.RepositoryManager, invites *InviteService, cfg *config.Config, logger logging.Logger) *BootstrapService {
	return &BootstrapService{repomanager: m, invites: invites, config: cfg, logger: logger}
}

// BootstrapAdmins raises the admin flag on existing accounts whose email
// is on the allow-list and creates an INVITED admin record for the rest.
// The invite link is mailed and also logged.
func (s *BootstrapService) BootstrapAdmins(ctx context.Context) error {
	repo := s.repomanager.Users()

	for _, email := range s.config.AdminEmails {
		user, err := repo.FindByEmail(ctx, email)
		switch {
		case err == nil:
			if user.IsAdmin {
				continue
			}
			if err := repo.SetAdmin(ctx, email); err != nil {
				return err
			}
			s.logger.Info(ctx, "existing account promoted to admin", "email", email)

		case errors.Is(err, common.ErrNotFound):
			created, err := s.invites.createInvited(ctx, &models.User{
				Name:    adminName(email),
				Email:   email,
				IsAdmin: true,
			})
			if errors.Is(err, common.ErrDuplicateEmail) {
				// Another instance bootstrapped it first.
				continue
			}
			if err != nil {
				return err
			}
			s.logger.Info(ctx, "admin invited",
				"email", email, "link", mail.InviteLink(s.config.FrontendURL, *created.InviteToken))
			s.invites.sendInvitation(ctx, created)

		default:
			return err
		}
	}
	return nil
}

func adminName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Admin"
	}
	return local
}
