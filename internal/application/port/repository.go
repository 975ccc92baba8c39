package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// Lookups return (nil, nil) when the record does not exist.

// CompanyRepository defines persistence operations for Company
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	Update(ctx context.Context, company *entity.Company) error
}

// ProfileRepository defines persistence operations for Profile and its role assignments
type ProfileRepository interface {
	Create(ctx context.Context, profile *entity.Profile) error
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
	GetByEmail(ctx context.Context, email string) (*entity.Profile, error)
	ListByCompany(ctx context.Context, companyID string) ([]*entity.Profile, error)
	Update(ctx context.Context, profile *entity.Profile) error

	// SetRoles replaces the role assignments of a user
	SetRoles(ctx context.Context, userID string, roles []entity.Role) error
}

// ExpenseFilter scopes an expense listing. CompanyID is required.
// ManagerID keeps expenses that have an approval assigned to that user.
type ExpenseFilter struct {
	CompanyID  string
	EmployeeID string
	ManagerID  string
}

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id string) (*entity.Expense, error)

	// List returns expenses ordered by created_at descending, then id
	List(ctx context.Context, filter ExpenseFilter) ([]*entity.Expense, error)

	UpdateStatus(ctx context.Context, id string, status entity.ExpenseStatus, updatedAt time.Time) error
	MarkOverridden(ctx context.Context, id string, status entity.ExpenseStatus, adminID string, updatedAt time.Time) error

	// ReceiptReferenced reports whether any expense points at the object path
	ReceiptReferenced(ctx context.Context, path string) (bool, error)
}

// ApprovalRepository defines persistence operations for Approval
type ApprovalRepository interface {
	CreateBatch(ctx context.Context, approvals []*entity.Approval) error
	GetByID(ctx context.Context, id string) (*entity.Approval, error)

	// ListByExpense returns approvals ordered by sequence_order, then id
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.Approval, error)

	// ListPendingByApprover returns pending approvals assigned to the user, oldest first
	ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.Approval, error)

	// CompareAndSwap writes status, comment and updated_at only if the stored
	// updated_at still equals expectedUpdatedAt. Returns entity.ErrConflict otherwise.
	CompareAndSwap(ctx context.Context, approval *entity.Approval, expectedUpdatedAt time.Time) error
}

// RuleRepository defines persistence operations for ApprovalRule
type RuleRepository interface {
	Create(ctx context.Context, rule *entity.ApprovalRule) error

	// ListByCompany returns rules ordered by sequence_order, then id
	ListByCompany(ctx context.Context, companyID string) ([]*entity.ApprovalRule, error)

	Delete(ctx context.Context, companyID, id string) (bool, error)
}

// DecisionLogRepository defines persistence operations for the expense audit trail
type DecisionLogRepository interface {
	Create(ctx context.Context, log *entity.DecisionLog) error
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.DecisionLog, error)
}

// CredentialRepository stores password hashes keyed by user id
type CredentialRepository interface {
	Create(ctx context.Context, userID, passwordHash string) error
	GetHash(ctx context.Context, userID string) (string, error)
}

// SessionRepository tracks revoked session tokens until they expire
type SessionRepository interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
