package services

import (
	"context"
	"strings"
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
	"github.com/woodraft/draftauth/internal/server/repositories/repomanager"
	"github.com/woodraft/draftauth/internal/server/repositories/users"
)

// --- helpers ---

type fakeQueue struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (q *fakeQueue) Enqueue(msg mail.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *fakeQueue) messages() []mail.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]mail.Message(nil), q.msgs...)
}

type env struct {
	cfg      *config.Config
	rm       *repomanager.MemoryRepositoryManager
	queue    *fakeQueue
	metrics  *metrics.Metrics
	hasher   *auth.Hasher
	tokens   *auth.TokenCodec
	invite   *InviteService
	register *RegistrationService
	auth     *AuthService
}

func newEnv(t *testing.T, admins ...string) *env {
	t.Helper()

	cfg := &config.Config{
		SecretKey:             "test-secret",
		TokenValidityDuration: 7 * 24 * time.Hour,
		FrontendURL:           "http://localhost:5173",
		AdminEmails:           admins,
	}
	hasher, err := auth.NewHasher(bcrypt.MinCost, 2, nil)
	require.NoError(t, err)

	e := &env{
		cfg:     cfg,
		rm:      repomanager.NewMemoryRepositoryManager(),
		queue:   &fakeQueue{},
		metrics: metrics.Discard(),
		hasher:  hasher,
		tokens:  auth.NewTokenCodec(cfg.SecretKey, cfg.TokenValidityDuration),
	}
	e.invite = NewInviteService(e.rm, e.queue, cfg, logging.Nop(), e.metrics)
	e.register = NewRegistrationService(e.rm, hasher, cfg, logging.Nop(), e.metrics)
	e.auth = NewAuthService(e.rm, hasher, e.tokens, logging.Nop(), e.metrics)
	return e
}

// inviteToken returns the token currently stored for email.
func (e *env) inviteToken(t *testing.T, email string) string {
	t.Helper()
	u, err := e.rm.Users().FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, u.InviteToken)
	return *u.InviteToken
}

// countUsers returns how many records hold email, case-insensitively.
func (e *env) countUsers(t *testing.T, email string) int {
	t.Helper()
	repo, ok := e.rm.Users().(*users.MemoryRepository)
	require.True(t, ok)

	n := 0
	for _, u := range repo.Snapshot() {
		if strings.EqualFold(u.Email, email) {
			n++
		}
	}
	return n
}
