package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sqlite.DB, logger *zap.Logger) *CompanyRepository {
	return &CompanyRepository{db: db, logger: logger}
}

// Create inserts a new company
func (r *CompanyRepository) Create(ctx context.Context, company *entity.Company) error {
	query := `
		INSERT INTO companies (id, name, currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		company.ID,
		company.Name,
		string(company.Currency),
		formatTime(company.CreatedAt),
		formatTime(company.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create company", zap.String("company_id", company.ID), zap.Error(err))
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `SELECT id, name, currency, created_at, updated_at FROM companies WHERE id = ?`

	var c entity.Company
	var currency, createdAt, updatedAt string
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &currency, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	c.Currency = entity.Currency(currency)
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update writes the mutable company fields
func (r *CompanyRepository) Update(ctx context.Context, company *entity.Company) error {
	query := `UPDATE companies SET name = ?, currency = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		company.Name,
		string(company.Currency),
		formatTime(company.UpdatedAt),
		company.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update company", zap.String("company_id", company.ID), zap.Error(err))
		return fmt.Errorf("failed to update company: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("company %s: %w", company.ID, entity.ErrNotFound)
	}
	return nil
}

// Verify interface compliance
var _ port.CompanyRepository = (*CompanyRepository)(nil)
