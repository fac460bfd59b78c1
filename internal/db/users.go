package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/taskdeck/backend/internal/model"
)

const userColumns = "id, username, email, password_hash, role, created_at, updated_at"

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) CreateUser(ctx context.Context, username, email, passwordHash string, role model.Role) (*model.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING %s
	`, userColumns)
	return scanUser(db.Pool.QueryRow(ctx, query, username, email, passwordHash, role))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUser(db.Pool.QueryRow(ctx, query, userID))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUser(db.Pool.QueryRow(ctx, query, email))
}

// GetUserByUsernameOrEmail backs the duplicate-identity check on registration.
func (db *Postgres) GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1 OR email = $2`, userColumns)
	return scanUser(db.Pool.QueryRow(ctx, query, username, email))
}

// FindDuplicateUser reports whether another user (id != excludeID) already
// holds the given username or email. Empty values are not matched.
func (db *Postgres) FindDuplicateUser(ctx context.Context, excludeID int64, username, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE id <> $1
			  AND (($2 <> '' AND username = $2) OR ($3 <> '' AND email = $3))
		)
	`
	var exists bool
	if err := db.Pool.QueryRow(ctx, query, excludeID, username, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (db *Postgres) ListUsers(ctx context.Context, search string, page, limit int) ([]model.User, int64, error) {
	where := ""
	args := []any{}
	if search != "" {
		where = `WHERE username ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM users %s`, where)
	if err := db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	listQuery := fmt.Sprintf(`
		SELECT %s FROM users %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, userColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := db.Pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var user model.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// UpdateUser rewrites the mutable columns. Callers pass the full desired
// state; updated_at is bumped here.
func (db *Postgres) UpdateUser(ctx context.Context, userID int64, username, email, passwordHash string, role model.Role) (*model.User, error) {
	query := fmt.Sprintf(`
		UPDATE users
		SET username = $2, email = $3, password_hash = $4, role = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, userColumns)
	return scanUser(db.Pool.QueryRow(ctx, query, userID, username, email, passwordHash, role))
}

// DeleteUser removes the user row; refresh tokens and todos go with it via
// ON DELETE CASCADE.
func (db *Postgres) DeleteUser(ctx context.Context, userID int64) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports a Postgres unique-constraint failure (23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
