package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CredentialRepository implements port.CredentialRepository
type CredentialRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *sqlite.DB, logger *zap.Logger) *CredentialRepository {
	return &CredentialRepository{db: db, logger: logger}
}

// Create stores the password hash of a user
func (r *CredentialRepository) Create(ctx context.Context, userID, passwordHash string) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`INSERT INTO credentials (user_id, password_hash, created_at) VALUES (?, ?, ?)`,
		userID, passwordHash, formatTime(time.Now()),
	)
	if err != nil {
		r.logger.Error("Failed to store credentials", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// GetHash returns the stored hash, or "" when the user has none
func (r *CredentialRepository) GetHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT password_hash FROM credentials WHERE user_id = ?`, userID,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credentials: %w", err)
	}
	return hash, nil
}

// Verify interface compliance
var _ port.CredentialRepository = (*CredentialRepository)(nil)
