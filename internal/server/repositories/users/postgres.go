package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/woodraft/draftauth/internal/common"
	"github.com/woodraft/draftauth/internal/dbx"
	"github.com/woodraft/draftauth/internal/server/models"
)

// Unique indexes created by the users migration.
const (
	emailIndex = "users_email_lower_key"
	tokenIndex = "users_invite_token_key"
)

const userColumns = `id, name, email, password_hash, is_verified, is_admin, invite_token, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var hash, token sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &hash, &u.IsVerified, &u.IsAdmin, &token, &u.CreatedAt); err != nil {
		return nil, err
	}
	if hash.Valid {
		u.PasswordHash = &hash.String
	}
	if token.Valid {
		u.InviteToken = &token.String
	}
	return u, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func persistenceError(op string, err error) error {
	return oops.
		In("users").
		Code("USER_STORE_FAILED").
		With("operation", op).
		Wrap(fmt.Errorf("%w: %w", common.ErrPersistence, err))
}

func (r *PostgresRepository) findOne(ctx context.Context, op, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, persistenceError(op, err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "find_by_email", `lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) FindByInviteToken(ctx context.Context, token string) (*models.User, error) {
	return r.findOne(ctx, "find_by_invite_token", `invite_token = $1`, token)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, "find_by_id", `id = $1`, id)
}

func (r *PostgresRepository) ListNonAdmin(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE NOT is_admin ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistenceError("list_non_admin", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, persistenceError("list_non_admin", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list_non_admin", err)
	}
	return out, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (name, email, password_hash, is_verified, is_admin, invite_token)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Name, user.Email, nullable(user.PasswordHash), user.IsVerified, user.IsAdmin, nullable(user.InviteToken),
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			switch constraint {
			case emailIndex:
				return nil, common.ErrDuplicateEmail
			case tokenIndex:
				return nil, common.ErrDuplicateToken
			}
		}
		return nil, persistenceError("create", err)
	}

	return user, nil
}

func (r *PostgresRepository) Save(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users
		 SET name = $2, email = $3, password_hash = $4, is_verified = $5, is_admin = $6, invite_token = $7
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, nullable(user.PasswordHash), user.IsVerified, user.IsAdmin, nullable(user.InviteToken))
	return r.checkUpdate("save", res, err)
}

func (r *PostgresRepository) CompleteRegistration(ctx context.Context, user *models.User, token string) error {
	query :=
		`UPDATE users
		 SET name = $3, email = $4, password_hash = $5, is_verified = $6, is_admin = $7, invite_token = $8
		 WHERE id = $1 AND invite_token = $2`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, token, user.Name, user.Email, nullable(user.PasswordHash), user.IsVerified, user.IsAdmin, nullable(user.InviteToken))
	return r.checkUpdate("complete_registration", res, err)
}

func (r *PostgresRepository) SetAdmin(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_admin = TRUE WHERE lower(email) = lower($1)`, email)
	return r.checkUpdate("set_admin", res, err)
}

func (r *PostgresRepository) checkUpdate(op string, res sql.Result, err error) error {
	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok && constraint == emailIndex {
			return common.ErrDuplicateEmail
		}
		return persistenceError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceError(op, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
