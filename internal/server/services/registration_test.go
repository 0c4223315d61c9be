package services

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/server/metrics"
	"github.com/woodraft/draftauth/internal/server/models"
	"github.com/woodraft/draftauth/internal/server/repositories/users"
)

func strPtr(s string) *string { return &s }

func TestRegister_Success(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.invite.Invite(ctx, "Alice", "a@x.com")
	require.NoError(t, err)
	token := e.inviteToken(t, "a@x.com")

	u, err := e.register.Register(ctx, token, "Alice Smith", "a@x.com", "pw123")
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
	assert.False(t, u.IsAdmin)
	assert.Nil(t, u.InviteToken)
	require.NotNil(t, u.PasswordHash)
	assert.NotEqual(t, "pw123", *u.PasswordHash)
	assert.True(t, e.hasher.VerifyPassword(ctx, "pw123", *u.PasswordHash))

	stored, err := e.rm.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", stored.Name)
	assert.Equal(t, models.StatusVerified, stored.Status())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.RegistrationsTotal.WithLabelValues(metrics.StatusOK)))
}

func TestRegister_NeverIssuedToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.invite.Invite(ctx, "Alice", "a@x.com")
	require.NoError(t, err)

	repo := e.rm.Users().(*users.MemoryRepository)
	before := repo.Snapshot()

	_, err = e.register.Register(ctx, "never-issued", "X", "x@x.com", "pw")
	assert.ErrorIs(t, err, common.ErrInvalidInviteToken)
	assert.Equal(t, before, repo.Snapshot(), "no record is mutated")
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.RegistrationsTotal.WithLabelValues(metrics.StatusRejected)))
}

func TestRegister_TwiceWithSameToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.invite.Invite(ctx, "Alice", "a@x.com")
	require.NoError(t, err)
	token := e.inviteToken(t, "a@x.com")

	_, err = e.register.Register(ctx, token, "Alice", "a@x.com", "pw123")
	require.NoError(t, err)

	_, err = e.register.Register(ctx, token, "Alice", "a@x.com", "other")
	assert.ErrorIs(t, err, common.ErrInvalidInviteToken)

	_, err = e.auth.Login(ctx, "a@x.com", "pw123")
	assert.NoError(t, err, "first password still valid")
}

func TestRegister_VerifiedHolderIsAlreadyRegistered(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.rm.Users().Create(ctx, &models.User{
		Name: "Old", Email: "old@x.com", PasswordHash: strPtr("$2a$04$x"), IsVerified: true, InviteToken: strPtr("stale"),
	})
	require.NoError(t, err)

	_, err = e.register.Register(ctx, "stale", "Old", "old@x.com", "pw")
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)
}

func TestRegister_EmailTakenByAnotherUserRollsBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.invite.Invite(ctx, "Alice", "a@x.com")
	require.NoError(t, err)
	_, err = e.invite.Invite(ctx, "Bob", "b@x.com")
	require.NoError(t, err)
	bobToken := e.inviteToken(t, "b@x.com")

	_, err = e.register.Register(ctx, bobToken, "Bob", "A@x.com", "pw")
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)

	assert.Equal(t, bobToken, e.inviteToken(t, "b@x.com"), "Bob is still invited")
}

func TestRegister_AdminAllowList(t *testing.T) {
	e := newEnv(t, "Boss@x.com")
	ctx := context.Background()

	for _, email := range []string{"boss@x.com", "coach@x.com"} {
		_, err := e.invite.Invite(ctx, strings.Split(email, "@")[0], email)
		require.NoError(t, err)
	}

	boss, err := e.register.Register(ctx, e.inviteToken(t, "boss@x.com"), "Boss", "boss@x.com", "pw")
	require.NoError(t, err)
	assert.True(t, boss.IsAdmin)

	coach, err := e.register.Register(ctx, e.inviteToken(t, "coach@x.com"), "Coach", "coach@x.com", "pw")
	require.NoError(t, err)
	assert.False(t, coach.IsAdmin)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.invite.Invite(ctx, "Alice", "a@x.com")
	require.NoError(t, err)

	_, err = e.register.Register(ctx, e.inviteToken(t, "a@x.com"), "Alice", "a@x.com", strings.Repeat("p", 100))
	assert.ErrorIs(t, err, common.ErrValidation)
}
