package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SessionRepository implements port.SessionRepository as a revocation list
type SessionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sqlite.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

// Revoke records tokenID as revoked until expiresAt. Revoking twice is a no-op.
func (r *SessionRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_sessions (token_id, expires_at) VALUES (?, ?)`,
		tokenID, formatTime(expiresAt),
	)
	if err != nil {
		r.logger.Error("Failed to revoke session", zap.String("token_id", tokenID), zap.Error(err))
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked
func (r *SessionRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var exists int
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_sessions WHERE token_id = ?)`, tokenID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return exists == 1, nil
}

// PurgeExpired drops revocations whose token has expired anyway
func (r *SessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM revoked_sessions WHERE expires_at < ?`, formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return result.RowsAffected()
}

// Verify interface compliance
var _ port.SessionRepository = (*SessionRepository)(nil)
