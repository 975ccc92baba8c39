package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const approvalColumns = `
	a.id, a.expense_id, a.approver_id, COALESCE(p.full_name, ''), a.sequence_order, a.tier_mode,
	a.status, a.comment, a.created_at, a.updated_at
`

const approvalFrom = ` FROM approvals a LEFT JOIN profiles p ON p.id = a.approver_id `

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sqlite.DB, logger *zap.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

// CreateBatch inserts every approval of an expense in one transaction
func (r *ApprovalRepository) CreateBatch(ctx context.Context, approvals []*entity.Approval) error {
	if len(approvals) == 0 {
		return nil
	}

	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO approvals (
				id, expense_id, approver_id, sequence_order, tier_mode, status, comment, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		exec := r.db.Executor(txCtx)
		for _, a := range approvals {
			_, err := exec.ExecContext(txCtx, query,
				a.ID,
				a.ExpenseID,
				a.ApproverID,
				a.SequenceOrder,
				string(a.TierMode),
				string(a.Status),
				a.Comment,
				formatTime(a.CreatedAt),
				formatTime(a.UpdatedAt),
			)
			if err != nil {
				r.logger.Error("Failed to create approval",
					zap.String("expense_id", a.ExpenseID),
					zap.String("approver_id", a.ApproverID),
					zap.Error(err))
				return fmt.Errorf("failed to create approval: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves an approval by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + approvalFrom + `WHERE a.id = ?`

	approval, err := scanApproval(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return approval, nil
}

// ListByExpense returns the approvals of an expense in tier order
func (r *ApprovalRepository) ListByExpense(ctx context.Context, expenseID string) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + approvalFrom +
		`WHERE a.expense_id = ? ORDER BY a.sequence_order ASC, a.id ASC`
	return r.list(ctx, query, expenseID)
}

// ListPendingByApprover returns pending approvals assigned to the user, oldest first
func (r *ApprovalRepository) ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.Approval, error) {
	query := `SELECT ` + approvalColumns + approvalFrom +
		`WHERE a.approver_id = ? AND a.status = ? ORDER BY a.created_at ASC, a.id ASC`
	return r.list(ctx, query, approverID, string(entity.ApprovalStatusPending))
}

func (r *ApprovalRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Approval, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*entity.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}
	return approvals, rows.Err()
}

// CompareAndSwap writes status, comment and updated_at only if the stored
// row still carries expectedUpdatedAt
func (r *ApprovalRepository) CompareAndSwap(ctx context.Context, approval *entity.Approval, expectedUpdatedAt time.Time) error {
	query := `
		UPDATE approvals
		SET status = ?, comment = ?, updated_at = ?
		WHERE id = ? AND updated_at = ?
	`
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		string(approval.Status),
		approval.Comment,
		formatTime(approval.UpdatedAt),
		approval.ID,
		formatTime(expectedUpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to update approval", zap.String("approval_id", approval.ID), zap.Error(err))
		return fmt.Errorf("failed to update approval: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		r.logger.Info("Approval compare-and-swap lost",
			zap.String("approval_id", approval.ID),
			zap.Time("expected_updated_at", expectedUpdatedAt))
		return entity.ErrConflict
	}
	return nil
}

func scanApproval(row rowScanner) (*entity.Approval, error) {
	var a entity.Approval
	var tierMode, status, createdAt, updatedAt string

	if err := row.Scan(
		&a.ID, &a.ExpenseID, &a.ApproverID, &a.ApproverName, &a.SequenceOrder, &tierMode,
		&status, &a.Comment, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	a.TierMode = entity.TierMode(tierMode)
	a.Status = entity.ApprovalStatus(status)
	return &a, nil
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
