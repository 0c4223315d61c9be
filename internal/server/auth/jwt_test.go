package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/server/models"
)

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Email: "coach@x.com", IsAdmin: true}
}

func TestIssueAndDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewTokenCodec("super-secret", 7*24*time.Hour)
	user := testUser()

	tok, err := codec.IssueToken(user)
	require.NoError(t, err)

	claims, err := codec.DecodeToken(tok)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "coach@x.com", claims.Email)
	assert.True(t, claims.IsAdmin)

	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.Equal(t, 7*24*time.Hour, ttl)
}

func TestDecodeToken_ExpiredAfterValidity(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	codec := NewTokenCodec("secret", 7*24*time.Hour)
	codec.now = func() time.Time { return issued }

	tok, err := codec.IssueToken(testUser())
	require.NoError(t, err)

	codec.now = func() time.Time { return issued.Add(7*24*time.Hour - time.Minute) }
	_, err = codec.DecodeToken(tok)
	require.NoError(t, err, "token is valid just before expiry")

	codec.now = func() time.Time { return issued.Add(7*24*time.Hour + time.Second) }
	_, err = codec.DecodeToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestDecodeToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenCodec("right-secret", time.Hour).IssueToken(testUser())
	require.NoError(t, err)

	_, err = NewTokenCodec("wrong-secret", time.Hour).DecodeToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestDecodeToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	codec := NewTokenCodec("secret", time.Hour)
	for name, tok := range map[string]string{"HS512": hs512, "none": none} {
		_, err := codec.DecodeToken(tok)
		assert.ErrorIs(t, err, common.ErrInvalidToken, name)
	}
}

func TestDecodeToken_RequiresExpiry(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenCodec("secret", time.Hour).DecodeToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestDecodeToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := NewTokenCodec("secret", time.Hour).DecodeToken("not-a-jwt")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
