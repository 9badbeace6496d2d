package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/sakif/budget-tracker/internal/apperror"
	"github.com/sakif/budget-tracker/internal/model"
	"github.com/sakif/budget-tracker/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, auth_provider, password_hash, created_at, updated_at`

// Create inserts a new account, generating the id and timestamps.
//
// Email uniqueness is enforced by the UNIQUE constraint, not by a prior
// SELECT. A constraint violation is translated to apperror.ErrDuplicate so
// the service layer sees the same error whether the duplicate was present
// all along or raced in from a concurrent request.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, auth_provider, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		string(user.Provider),
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("User already exists")
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves an account by its internal id.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves an account by exact email match.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByUsernameOrEmail retrieves the first account whose email or username
// equals the input. Usernames are not unique, so "first match" is the
// contract here; email matches take precedence by query order.
func (db *DB) GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*model.User, error) {
	return db.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? OR username = ?
		 ORDER BY email = ? DESC LIMIT 1`,
		usernameOrEmail, usernameOrEmail, usernameOrEmail)
}

func (db *DB) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	var (
		u        model.User
		provider string
	)

	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&provider,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("User does not exist")
		}
		return nil, fmt.Errorf("sqlite: querying user: %w", err)
	}

	u.Provider = model.AuthProvider(provider)
	return &u, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure (extended result code SQLITE_CONSTRAINT_UNIQUE).
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE
}
