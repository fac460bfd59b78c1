package db

import (
	"context"
	"time"

	"github.com/taskdeck/backend/internal/model"
)

const refreshTokenColumns = "id, user_id, token, expires_at, revoked, revoked_at, created_at"

// InsertRefreshToken persists a new live ledger row. A unique violation on
// the token column surfaces as-is; callers treat it as a hard conflict.
func (db *Postgres) InsertRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := db.Pool.Exec(ctx, query, userID, token, expiresAt)
	return err
}

// GetLiveRefreshToken returns the ledger row for token only if it is neither
// revoked nor expired. Absent, expired and revoked rows are all pgx.ErrNoRows.
func (db *Postgres) GetLiveRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token = $1 AND revoked = FALSE AND expires_at > NOW()
	`
	var record model.RefreshToken
	err := db.Pool.QueryRow(ctx, query, token).Scan(
		&record.ID,
		&record.UserID,
		&record.Token,
		&record.ExpiresAt,
		&record.Revoked,
		&record.RevokedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RevokeRefreshToken flips a single row to revoked, conditional on it still
// being live. The WHERE revoked = FALSE clause is what makes concurrent
// rotation safe: of two callers racing to rotate the same row, exactly one
// sees revoked = true returned here; the other gets false and must fail.
func (db *Postgres) RevokeRefreshToken(ctx context.Context, tokenID int64) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = NOW()
		WHERE id = $1 AND revoked = FALSE
	`
	tag, err := db.Pool.Exec(ctx, query, tokenID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RevokeRefreshTokenByValue revokes the row holding token regardless of its
// expiry. A missing or already-revoked row is a no-op, which makes logout
// idempotent.
func (db *Postgres) RevokeRefreshTokenByValue(ctx context.Context, token string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = NOW()
		WHERE token = $1 AND revoked = FALSE
	`
	_, err := db.Pool.Exec(ctx, query, token)
	return err
}

// RevokeAllRefreshTokensForUser bulk-revokes every live row owned by userID.
// Used on login (single active chain) and logout-all.
func (db *Postgres) RevokeAllRefreshTokensForUser(ctx context.Context, userID int64) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = NOW()
		WHERE user_id = $1 AND revoked = FALSE
	`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}
