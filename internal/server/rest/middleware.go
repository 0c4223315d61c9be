package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/models"
)

type ctxKey string

const userKey ctxKey = "user"

// UserFromContext returns the user stored by Authenticate.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

// bearerToken extracts the credentials of an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get(common.AuthorizationHeader), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate resolves the bearer token to a verified user and stores it
// in the request context. Missing or bad tokens get 401, unverified users 403.
func (h *handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			errorJSON(w, http.StatusUnauthorized, detailUnauthenticated)
			return
		}

		user, err := h.auth.VerifySession(r.Context(), token)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin lets only administrators through. It must run after
// Authenticate.
func (h *handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		if _, err := h.auth.RequireAdmin(user); err != nil {
			if errors.Is(err, common.ErrForbidden) {
				errorJSON(w, http.StatusForbidden, detailNotAdmin)
				return
			}
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request once the response is written.
func requestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				l.Info(r.Context(), "request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
