package repository

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// DecisionLogRepository implements port.DecisionLogRepository
type DecisionLogRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDecisionLogRepository creates a new decision log repository
func NewDecisionLogRepository(db *sqlite.DB, logger *zap.Logger) *DecisionLogRepository {
	return &DecisionLogRepository{db: db, logger: logger}
}

// Create appends an audit entry. The generated id is written back to log.
func (r *DecisionLogRepository) Create(ctx context.Context, log *entity.DecisionLog) error {
	query := `
		INSERT INTO decision_logs (
			expense_id, approval_id, actor_id, action, previous_status, new_status, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		log.ExpenseID,
		log.ApprovalID,
		log.ActorID,
		log.Action,
		log.PreviousStatus,
		log.NewStatus,
		log.Comment,
		formatTime(log.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create decision log",
			zap.String("expense_id", log.ExpenseID),
			zap.String("action", log.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create decision log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get decision log ID: %w", err)
	}
	log.ID = id
	return nil
}

// ListByExpense returns the audit trail of an expense in insertion order
func (r *DecisionLogRepository) ListByExpense(ctx context.Context, expenseID string) ([]*entity.DecisionLog, error) {
	query := `
		SELECT id, expense_id, approval_id, actor_id, action, previous_status, new_status, comment, created_at
		FROM decision_logs
		WHERE expense_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decision logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.DecisionLog
	for rows.Next() {
		var l entity.DecisionLog
		var createdAt string
		if err := rows.Scan(
			&l.ID, &l.ExpenseID, &l.ApprovalID, &l.ActorID, &l.Action,
			&l.PreviousStatus, &l.NewStatus, &l.Comment, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision log: %w", err)
		}
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// Verify interface compliance
var _ port.DecisionLogRepository = (*DecisionLogRepository)(nil)
