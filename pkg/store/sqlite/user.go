package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
)

const userColumns = `id, email, username, password_hash, role, quota_bytes, active, created_at, updated_at`

func (s *SQLiteStore) CreateUser(ctx context.Context, user *depot.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Username, user.PasswordHash, string(user.Role),
		user.QuotaBytes, boolToInt(user.Active),
		user.CreatedAt.UnixNano(), user.UpdatedAt.UnixNano(),
	)
	return translateError(err, user.Email)
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*depot.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	return user, err
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*depot.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", email)
	}
	return user, err
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, user *depot.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, username = ?, password_hash = ?, role = ?,
		        quota_bytes = ?, active = ?, created_at = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email, user.Username, user.PasswordHash, string(user.Role),
		user.QuotaBytes, boolToInt(user.Active),
		user.CreatedAt.UnixNano(), user.UpdatedAt.UnixNano(),
		user.ID,
	)
	if err != nil {
		return translateError(err, user.Email)
	}
	return requireRow(res, "user", user.ID)
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return translateError(err, id)
	}
	return requireRow(res, "user", id)
}

func (s *SQLiteStore) ListUsers(ctx context.Context, page store.Page) ([]*depot.User, int, error) {
	page = page.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*depot.User, 0, page.Size)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*depot.User, error) {
	var (
		user               depot.User
		role               string
		active             int
		createdAt, updated int64
	)
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&role, &user.QuotaBytes, &active, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	user.Role = depot.Role(role)
	user.Active = active != 0
	user.CreatedAt = time.Unix(0, createdAt)
	user.UpdatedAt = time.Unix(0, updated)
	return &user, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireRow converts a zero-row write into a not-found error.
func requireRow(res sql.Result, what, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(what, key)
	}
	return nil
}
