package port

import (
	"time"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// PasswordHasher hashes and verifies user passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenClaims is the session content carried by an access token
type TokenClaims struct {
	TokenID   string
	UserID    string
	CompanyID string
	Roles     []entity.Role
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies session tokens
type TokenIssuer interface {
	Issue(userID, companyID string, roles []entity.Role) (token string, claims *TokenClaims, err error)
	Parse(token string) (*TokenClaims, error)
}

// ExpenseExporter renders an expense list into a downloadable document
type ExpenseExporter interface {
	Export(company *entity.Company, expenses []*entity.Expense) ([]byte, error)
	ContentType() string
	FileExtension() string
}
