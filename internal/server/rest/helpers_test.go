package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/auth"
	"github.com/woodraft/draftauth/internal/server/config"
	"github.com/woodraft/draftauth/internal/server/mail"
	"github.com/woodraft/draftauth/internal/server/metrics"
	"github.com/woodraft/draftauth/internal/server/models"
	"github.com/woodraft/draftauth/internal/server/repositories/repomanager"
	"github.com/woodraft/draftauth/internal/server/services"
)

type captureQueue struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (q *captureQueue) Enqueue(msg mail.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	rm      *repomanager.MemoryRepositoryManager
	hasher  *auth.Hasher
	tokens  *auth.TokenCodec
	queue   *captureQueue
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := &config.Config{
		SecretKey:             "test-secret",
		TokenValidityDuration: time.Hour,
		FrontendURL:           "http://localhost:5173",
	}
	hasher, err := auth.NewHasher(bcrypt.MinCost, 2, nil)
	require.NoError(t, err)

	a := &testAPI{
		t:      t,
		rm:     repomanager.NewMemoryRepositoryManager(),
		hasher: hasher,
		tokens: auth.NewTokenCodec(cfg.SecretKey, cfg.TokenValidityDuration),
		queue:  &captureQueue{},
	}

	mt := metrics.Discard()
	a.handler = NewRouter(Deps{
		Auth:          services.NewAuthService(a.rm, hasher, a.tokens, logging.Nop(), mt),
		Invites:       services.NewInviteService(a.rm, a.queue, cfg, logging.Nop(), mt),
		Registrations: services.NewRegistrationService(a.rm, hasher, cfg, logging.Nop(), mt),
		Gatherer:      metrics.NewRegistry(),
		Logger:        logging.Nop(),
	}, Options{CORSOrigins: []string{"http://localhost:5173/"}, RequestTimeout: 5 * time.Second})

	return a
}

// seedUser stores a registered user directly and returns it.
func (a *testAPI) seedUser(name, email, password string, admin bool) *models.User {
	a.t.Helper()
	ctx := context.Background()

	hash, err := a.hasher.HashPassword(ctx, password)
	require.NoError(a.t, err)

	u, err := a.rm.Users().Create(ctx, &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: &hash,
		IsVerified:   true,
		IsAdmin:      admin,
	})
	require.NoError(a.t, err)
	return u
}

func (a *testAPI) tokenFor(u *models.User) string {
	a.t.Helper()
	tok, err := a.tokens.IssueToken(u)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody[map[string]any](t, rec)
	s, _ := body["detail"].(string)
	return s
}
