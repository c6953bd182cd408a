package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/campus/internal/auth/domain"
	"github.com/aussiebroadwan/campus/internal/auth/store"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const userColumns = `id, collection, email, display_name, password_hash, scopes, mfa_secret, created_at, updated_at`

// FindBySubject looks a user up by id or email inside one collection.
func (s *Store) FindBySubject(ctx context.Context, collection domain.Role, subject string) (domain.User, error) {
	if _, err := domain.ParseRole(string(collection)); err != nil {
		return domain.User{}, fmt.Errorf("%w: %q", store.ErrUnknownCollection, collection)
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return domain.User{}, store.ErrNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE collection = ? AND (id = ? OR email = ?)
		 LIMIT 1`,
		string(collection), subject, subject,
	)

	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

// VerifyPassword reports whether plaintext matches the user's hash. A
// malformed stored hash counts as a mismatch.
func (s *Store) VerifyPassword(u domain.User, plaintext string) bool {
	return s.hasher.Verify(plaintext, u.PasswordHash) == nil
}

// CreateUser inserts u, returning store.ErrAlreadyExists when the email is
// taken within the collection or the id is reused.
func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	if _, err := domain.ParseRole(string(u.Collection)); err != nil {
		return fmt.Errorf("%w: %q", store.ErrUnknownCollection, u.Collection)
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		string(u.Collection),
		strings.TrimSpace(u.Email),
		u.DisplayName,
		u.PasswordHash,
		strings.Join(splitAndFilter(strings.Join(u.Scopes, " ")), " "),
		mapOptionalString(u.MFASecret),
		u.CreatedAt,
		u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// CountUsers returns how many users belong to collection.
func (s *Store) CountUsers(ctx context.Context, collection domain.Role) (int, error) {
	if _, err := domain.ParseRole(string(collection)); err != nil {
		return 0, fmt.Errorf("%w: %q", store.ErrUnknownCollection, collection)
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE collection = ?`, string(collection),
	).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u          domain.User
		collection string
		scopes     string
		mfaSecret  sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&collection,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&scopes,
		&mfaSecret,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Collection = domain.Role(collection)
	u.Scopes = splitAndFilter(scopes)
	u.MFASecret = mapNullStringPtr(mfaSecret)
	return u, nil
}

func isUniqueViolation(err error) bool {
	var sqlErr *msqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	code := sqlErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
