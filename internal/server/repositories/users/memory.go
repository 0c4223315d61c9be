package users

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/server/models"
)

// MemoryRepository keeps users in process memory. It enforces the same
// uniqueness rules as the PostgreSQL schema and is used for local runs
// without a database and in service tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]models.User
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[uuid.UUID]models.User), now: time.Now}
}

// Snapshot returns a copy of the current rows.
func (r *MemoryRepository) Snapshot() map[uuid.UUID]models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.rows)
}

func clone(u models.User) *models.User {
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		u.PasswordHash = &h
	}
	if u.InviteToken != nil {
		t := *u.InviteToken
		u.InviteToken = &t
	}
	return &u
}

func (r *MemoryRepository) find(match func(u *models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.rows {
		if match(&u) {
			return clone(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(a, b)
}

func sameToken(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return sameEmail(u.Email, email) })
}

func (r *MemoryRepository) FindByInviteToken(_ context.Context, token string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return sameToken(u.InviteToken, &token) })
}

func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) ListNonAdmin(_ context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.User
	for _, u := range r.rows {
		if !u.IsAdmin {
			out = append(out, clone(u))
		}
	}
	slices.SortFunc(out, func(a, b *models.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// conflict reports which uniqueness rule u would break, ignoring the row
// with the same ID. Callers hold r.mu.
func (r *MemoryRepository) conflict(u *models.User) error {
	for id, other := range r.rows {
		if id == u.ID {
			continue
		}
		if sameEmail(other.Email, u.Email) {
			return common.ErrDuplicateEmail
		}
		if sameToken(other.InviteToken, u.InviteToken) {
			return common.ErrDuplicateToken
		}
	}
	return nil
}

// journal is told the stored state of a row before it is overwritten; nil
// means the row did not exist. Callers hold r.mu.
type journal func(id uuid.UUID, prev *models.User)

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	return r.create(user, nil)
}

func (r *MemoryRepository) Save(_ context.Context, user *models.User) error {
	return r.save(user, nil)
}

func (r *MemoryRepository) CompleteRegistration(_ context.Context, user *models.User, token string) error {
	return r.completeRegistration(user, token, nil)
}

func (r *MemoryRepository) SetAdmin(_ context.Context, email string) error {
	return r.setAdmin(email, nil)
}

func (r *MemoryRepository) create(user *models.User, j journal) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.ID = uuid.New()
	if err := r.conflict(user); err != nil {
		return nil, err
	}
	user.CreatedAt = r.now()
	if j != nil {
		j(user.ID, nil)
	}
	r.rows[user.ID] = *clone(*user)
	return user, nil
}

func (r *MemoryRepository) save(user *models.User, j journal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(user, func(models.User) bool { return true }, j)
}

func (r *MemoryRepository) completeRegistration(user *models.User, token string, j journal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(user, func(cur models.User) bool { return sameToken(cur.InviteToken, &token) }, j)
}

func (r *MemoryRepository) setAdmin(email string, j journal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.rows {
		if sameEmail(u.Email, email) {
			if j != nil {
				j(id, clone(u))
			}
			u.IsAdmin = true
			r.rows[id] = u
			return nil
		}
	}
	return common.ErrNotFound
}

// update replaces the row of user.ID when cond holds for the stored row.
// Callers hold r.mu.
func (r *MemoryRepository) update(user *models.User, cond func(cur models.User) bool, j journal) error {
	cur, ok := r.rows[user.ID]
	if !ok || !cond(cur) {
		return common.ErrNotFound
	}
	if err := r.conflict(user); err != nil {
		return err
	}
	if j != nil {
		j(user.ID, clone(cur))
	}
	next := *clone(*user)
	next.CreatedAt = cur.CreatedAt
	r.rows[user.ID] = next
	return nil
}

// MemoryTx is a transactional view of a MemoryRepository. Writes go straight
// to the shared rows; Rollback puts back only the rows this view wrote, so
// writes made concurrently through the repository itself survive.
type MemoryTx struct {
	*MemoryRepository
	undo map[uuid.UUID]*models.User
}

// Begin opens a transactional view.
func (r *MemoryRepository) Begin() *MemoryTx {
	return &MemoryTx{MemoryRepository: r, undo: make(map[uuid.UUID]*models.User)}
}

// remember keeps the first pre-image of each row.
func (t *MemoryTx) remember(id uuid.UUID, prev *models.User) {
	if _, seen := t.undo[id]; !seen {
		t.undo[id] = prev
	}
}

func (t *MemoryTx) Create(_ context.Context, user *models.User) (*models.User, error) {
	return t.create(user, t.remember)
}

func (t *MemoryTx) Save(_ context.Context, user *models.User) error {
	return t.save(user, t.remember)
}

func (t *MemoryTx) CompleteRegistration(_ context.Context, user *models.User, token string) error {
	return t.completeRegistration(user, token, t.remember)
}

func (t *MemoryTx) SetAdmin(_ context.Context, email string) error {
	return t.setAdmin(email, t.remember)
}

// Rollback restores every row written through t to its state before the
// first write; rows t created are removed.
func (t *MemoryTx) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, prev := range t.undo {
		if prev == nil {
			delete(t.rows, id)
			continue
		}
		t.rows[id] = *prev
	}
	clear(t.undo)
}
