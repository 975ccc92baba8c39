package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const profileColumns = `
	p.id, p.company_id, p.full_name, p.email, p.manager_id, p.active, p.created_at, p.updated_at,
	(SELECT GROUP_CONCAT(r.role) FROM user_roles r WHERE r.user_id = p.id)
`

// ProfileRepository implements port.ProfileRepository
type ProfileRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sqlite.DB, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{db: db, logger: logger}
}

// Create inserts a profile together with its role assignments
func (r *ProfileRepository) Create(ctx context.Context, profile *entity.Profile) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO profiles (id, company_id, full_name, email, manager_id, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := r.db.Executor(txCtx).ExecContext(txCtx, query,
			profile.ID,
			profile.CompanyID,
			profile.FullName,
			profile.Email,
			nullString(profile.ManagerID),
			boolToInt(profile.Active),
			formatTime(profile.CreatedAt),
			formatTime(profile.UpdatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create profile", zap.String("user_id", profile.ID), zap.Error(err))
			return fmt.Errorf("failed to create profile: %w", err)
		}
		return r.SetRoles(txCtx, profile.ID, profile.Roles)
	})
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.id = ?`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a profile by its (normalized) email
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.email = ?`
	return r.getOne(ctx, query, email)
}

func (r *ProfileRepository) getOne(ctx context.Context, query string, arg string) (*entity.Profile, error) {
	profile, err := scanProfile(r.db.Executor(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// ListByCompany returns the company's profiles ordered by full name
func (r *ProfileRepository) ListByCompany(ctx context.Context, companyID string) ([]*entity.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles p WHERE p.company_id = ? ORDER BY p.full_name, p.id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*entity.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

// Update writes the mutable profile fields. Roles are changed through SetRoles.
func (r *ProfileRepository) Update(ctx context.Context, profile *entity.Profile) error {
	query := `
		UPDATE profiles
		SET full_name = ?, manager_id = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		profile.FullName,
		nullString(profile.ManagerID),
		boolToInt(profile.Active),
		formatTime(profile.UpdatedAt),
		profile.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update profile", zap.String("user_id", profile.ID), zap.Error(err))
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("profile %s: %w", profile.ID, entity.ErrNotFound)
	}
	return nil
}

// SetRoles replaces the role assignments of a user
func (r *ProfileRepository) SetRoles(ctx context.Context, userID string, roles []entity.Role) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)
		if _, err := exec.ExecContext(txCtx, `DELETE FROM user_roles WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to clear roles: %w", err)
		}
		for _, role := range roles {
			_, err := exec.ExecContext(txCtx,
				`INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`,
				userID, string(role),
			)
			if err != nil {
				r.logger.Error("Failed to assign role",
					zap.String("user_id", userID),
					zap.String("role", string(role)),
					zap.Error(err))
				return fmt.Errorf("failed to assign role %s: %w", role, err)
			}
		}
		return nil
	})
}

func scanProfile(row rowScanner) (*entity.Profile, error) {
	var p entity.Profile
	var managerID, roles sql.NullString
	var active int
	var createdAt, updatedAt string

	if err := row.Scan(
		&p.ID, &p.CompanyID, &p.FullName, &p.Email, &managerID, &active, &createdAt, &updatedAt, &roles,
	); err != nil {
		return nil, err
	}

	var err error
	p.ManagerID = stringPtr(managerID)
	p.Active = active != 0
	p.Roles = splitRoles(roles.String)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func splitRoles(joined string) []entity.Role {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	sort.Strings(parts)
	roles := make([]entity.Role, 0, len(parts))
	for _, part := range parts {
		roles = append(roles, entity.Role(part))
	}
	return roles
}

// Verify interface compliance
var _ port.ProfileRepository = (*ProfileRepository)(nil)
