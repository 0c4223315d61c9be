package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/woodraft/draftauth/internal/common"
)

// Hasher runs bcrypt on a bounded number of slots so a burst of logins
// cannot starve the request goroutines of CPU.
type Hasher struct {
	cost     int
	slots    *semaphore.Weighted
	dummy    []byte
	duration *prometheus.HistogramVec
}

// NewHasher builds a hasher with the given bcrypt cost and worker slots.
// workers <= 0 means GOMAXPROCS. duration may be nil.
func NewHasher(cost, workers int, duration *prometheus.HistogramVec) (*Hasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_INVALID_COST").With("cost", cost).Errorf("bcrypt cost out of range")
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Verifying a login for an unknown account costs the same as a real one.
	dummy, err := bcrypt.GenerateFromPassword(common.GenerateRandByteArray(32), cost)
	if err != nil {
		return nil, oops.Code("AUTH_DUMMY_HASH_FAILED").Wrap(err)
	}

	return &Hasher{
		cost:     cost,
		slots:    semaphore.NewWeighted(int64(workers)),
		dummy:    dummy,
		duration: duration,
	}, nil
}

func (h *Hasher) observe(op string, start time.Time) {
	if h.duration != nil {
		h.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// HashPassword returns the bcrypt hash of plaintext. It fails with the
// context error if no slot frees up before ctx is done.
func (h *Hasher) HashPassword(ctx context.Context, plaintext string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)
	defer h.observe("hash", time.Now())

	pw := []byte(plaintext)
	defer common.WipeByteArray(pw)

	hash, err := bcrypt.GenerateFromPassword(pw, h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash. A malformed or
// empty hash is checked against the dummy hash and yields false.
func (h *Hasher) VerifyPassword(ctx context.Context, plaintext, hash string) bool {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.slots.Release(1)
	defer h.observe("verify", time.Now())

	pw := []byte(plaintext)
	defer common.WipeByteArray(pw)

	target := []byte(hash)
	if _, err := bcrypt.Cost(target); err != nil {
		_ = bcrypt.CompareHashAndPassword(h.dummy, pw)
		return false
	}
	return bcrypt.CompareHashAndPassword(target, pw) == nil
}

// BurnVerify performs a verification against the dummy hash. It keeps the
// timing of failed logins independent of whether the account exists.
func (h *Hasher) BurnVerify(ctx context.Context, plaintext string) {
	h.VerifyPassword(ctx, plaintext, "")
}
