package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new approval rule repository
func NewRuleRepository(db *sqlite.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

// Create inserts a new approval rule
func (r *RuleRepository) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	query := `
		INSERT INTO approval_rules (id, company_id, rule_type, threshold, required_approver_id, sequence_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var threshold sql.NullString
	if rule.Threshold != nil {
		threshold = sql.NullString{String: rule.Threshold.String(), Valid: true}
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		rule.ID,
		rule.CompanyID,
		string(rule.RuleType),
		threshold,
		nullString(rule.RequiredApproverID),
		rule.SequenceOrder,
		formatTime(rule.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create approval rule",
			zap.String("company_id", rule.CompanyID),
			zap.String("rule_type", string(rule.RuleType)),
			zap.Error(err))
		return fmt.Errorf("failed to create approval rule: %w", err)
	}
	return nil
}

// ListByCompany returns rules ordered by sequence_order, then id
func (r *RuleRepository) ListByCompany(ctx context.Context, companyID string) ([]*entity.ApprovalRule, error) {
	query := `
		SELECT id, company_id, rule_type, threshold, required_approver_id, sequence_order, created_at
		FROM approval_rules
		WHERE company_id = ?
		ORDER BY sequence_order ASC, id ASC
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.ApprovalRule
	for rows.Next() {
		var rule entity.ApprovalRule
		var ruleType, createdAt string
		var threshold, approverID sql.NullString

		if err := rows.Scan(
			&rule.ID, &rule.CompanyID, &ruleType, &threshold, &approverID, &rule.SequenceOrder, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approval rule: %w", err)
		}

		rule.RuleType = entity.RuleType(ruleType)
		rule.RequiredApproverID = stringPtr(approverID)
		if threshold.Valid {
			d, err := decimal.NewFromString(threshold.String)
			if err != nil {
				return nil, fmt.Errorf("invalid threshold %q: %w", threshold.String, err)
			}
			rule.Threshold = &d
		}
		if rule.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// Delete removes a rule of the company, reporting whether it existed
func (r *RuleRepository) Delete(ctx context.Context, companyID, id string) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM approval_rules WHERE id = ? AND company_id = ?`, id, companyID,
	)
	if err != nil {
		r.logger.Error("Failed to delete approval rule", zap.String("rule_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete approval rule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Verify interface compliance
var _ port.RuleRepository = (*RuleRepository)(nil)
