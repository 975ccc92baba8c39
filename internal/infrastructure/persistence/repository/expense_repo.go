package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const expenseColumns = `
	e.id, e.company_id, e.employee_id, COALESCE(p.full_name, ''), e.amount, e.currency, e.category,
	e.description, e.expense_date, e.receipt_path, e.status, e.overridden_by, e.created_at, e.updated_at
`

const expenseFrom = ` FROM expenses e LEFT JOIN profiles p ON p.id = e.employee_id `

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sqlite.DB, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{db: db, logger: logger}
}

// Create inserts a new expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	query := `
		INSERT INTO expenses (
			id, company_id, employee_id, amount, currency, category, description,
			expense_date, receipt_path, status, overridden_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		expense.ID,
		expense.CompanyID,
		expense.EmployeeID,
		expense.Amount.String(),
		string(expense.Currency),
		string(expense.Category),
		expense.Description,
		expense.ExpenseDate.Format(entity.DateLayout),
		expense.ReceiptPath,
		string(expense.Status),
		nullString(expense.OverriddenBy),
		formatTime(expense.CreatedAt),
		formatTime(expense.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create expense",
			zap.String("expense_id", expense.ID),
			zap.String("employee_id", expense.EmployeeID),
			zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetByID retrieves an expense by ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + expenseFrom + `WHERE e.id = ?`

	expense, err := scanExpense(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// List returns the expenses matching filter, newest first
func (r *ExpenseRepository) List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	if filter.CompanyID == "" {
		return nil, fmt.Errorf("expense listing requires a company: %w", entity.ErrValidation)
	}

	conditions := []string{"e.company_id = ?"}
	args := []interface{}{filter.CompanyID}
	if filter.EmployeeID != "" {
		conditions = append(conditions, "e.employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.ManagerID != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM approvals a WHERE a.expense_id = e.id AND a.approver_id = ?)")
		args = append(args, filter.ManagerID)
	}

	query := `SELECT ` + expenseColumns + expenseFrom +
		`WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY e.created_at DESC, e.id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

// UpdateStatus sets the derived status of an expense
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id string, status entity.ExpenseStatus, updatedAt time.Time) error {
	query := `UPDATE expenses SET status = ?, updated_at = ? WHERE id = ?`
	return r.update(ctx, id, "update expense status", query, string(status), formatTime(updatedAt), id)
}

// MarkOverridden records an administrative override of the expense status
func (r *ExpenseRepository) MarkOverridden(ctx context.Context, id string, status entity.ExpenseStatus, adminID string, updatedAt time.Time) error {
	query := `UPDATE expenses SET status = ?, overridden_by = ?, updated_at = ? WHERE id = ?`
	return r.update(ctx, id, "override expense", query, string(status), adminID, formatTime(updatedAt), id)
}

func (r *ExpenseRepository) update(ctx context.Context, id, op, query string, args ...interface{}) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.String("expense_id", id), zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

// ReceiptReferenced reports whether any expense points at the object path
func (r *ExpenseRepository) ReceiptReferenced(ctx context.Context, path string) (bool, error) {
	var exists int
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM expenses WHERE receipt_path = ?)`, path,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check receipt reference: %w", err)
	}
	return exists == 1, nil
}

func scanExpense(row rowScanner) (*entity.Expense, error) {
	var e entity.Expense
	var amount, currency, category, expenseDate, status, createdAt, updatedAt string
	var overriddenBy sql.NullString

	if err := row.Scan(
		&e.ID, &e.CompanyID, &e.EmployeeID, &e.EmployeeName, &amount, &currency, &category,
		&e.Description, &expenseDate, &e.ReceiptPath, &status, &overriddenBy, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if e.ExpenseDate, err = time.Parse(entity.DateLayout, expenseDate); err != nil {
		return nil, fmt.Errorf("invalid expense date %q: %w", expenseDate, err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	e.Currency = entity.Currency(currency)
	e.Category = entity.Category(category)
	e.Status = entity.ExpenseStatus(status)
	e.OverriddenBy = stringPtr(overriddenBy)
	return &e, nil
}

// Verify interface compliance
var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
