package rest

import (
	"context"
	"net/http"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/models"
)

// Authenticator is the authentication half of the service layer.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	VerifySession(ctx context.Context, token string) (*models.User, error)
	RequireAdmin(user *models.User) (*models.User, error)
	ListCoachStatus(ctx context.Context) ([]models.CoachStatus, error)
}

// Inviter creates invited coach records.
type Inviter interface {
	Invite(ctx context.Context, name, email string) (*models.User, error)
}

// Registrar redeems invite tokens.
type Registrar interface {
	Register(ctx context.Context, token, name, email, password string) (*models.User, error)
}

type handler struct {
	auth          Authenticator
	invites       Inviter
	registrations Registrar
	logger        logging.Logger
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Woo Draft API is running"})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *handler) invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !decode(w, r, &req, trimInvite) {
		return
	}

	if _, err := h.invites.Invite(r.Context(), req.Name, req.Email); err != nil {
		h.fail(w, r, err)
		return
	}

	admin, _ := UserFromContext(r.Context())
	h.logger.Info(r.Context(), "invitation created", "email", req.Email, "by", admin.ID.String())
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Invitation sent."})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req, trimRegister) {
		return
	}

	user, err := h.registrations.Register(r.Context(), req.Token, req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req, trimLogin) {
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: common.TokenType})
}

func (h *handler) coaches(w http.ResponseWriter, r *http.Request) {
	list, err := h.auth.ListCoachStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]coachResponse, 0, len(list))
	for _, c := range list {
		out = append(out, coachResponse{
			ID:         c.ID,
			Name:       c.Name,
			Email:      c.Email,
			Status:     c.Status,
			IsVerified: c.IsVerified,
			CreatedAt:  c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:         user.ID,
		Email:      user.Email,
		IsAdmin:    user.IsAdmin,
		IsVerified: user.IsVerified,
	})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, newUserResponse(user))
}
