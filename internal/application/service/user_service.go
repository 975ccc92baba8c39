package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/policy"
)

// UserService is admin user and company management
type UserService interface {
	Invite(ctx context.Context, actor policy.Actor, req InviteRequest) (*entity.Profile, error)
	List(ctx context.Context, actor policy.Actor) ([]*entity.Profile, error)
	Update(ctx context.Context, actor policy.Actor, userID string, req UpdateUserRequest) (*entity.Profile, error)
	Company(ctx context.Context, actor policy.Actor) (*entity.Company, error)
	UpdateCompany(ctx context.Context, actor policy.Actor, req UpdateCompanyRequest) (*entity.Company, error)
}

// InviteRequest adds a user to the admin's company
type InviteRequest struct {
	Email     string        `json:"email"`
	Password  string        `json:"password"`
	FullName  string        `json:"full_name"`
	Roles     []entity.Role `json:"roles"`
	ManagerID *string       `json:"manager_id"`
}

// UpdateUserRequest changes a profile. Nil fields are left alone; an empty ManagerID clears it.
type UpdateUserRequest struct {
	FullName  *string       `json:"full_name"`
	ManagerID *string       `json:"manager_id"`
	Roles     []entity.Role `json:"roles"`
	Active    *bool         `json:"active"`
}

// UpdateCompanyRequest changes the mutable company fields
type UpdateCompanyRequest struct {
	Name     *string          `json:"name"`
	Currency *entity.Currency `json:"currency"`
}

// UserDeps groups the collaborators of the user service
type UserDeps struct {
	Companies   port.CompanyRepository
	Profiles    port.ProfileRepository
	Credentials port.CredentialRepository
	Hasher      port.PasswordHasher
	TxManager   port.TransactionManager
}

type userServiceImpl struct {
	deps          UserDeps
	accounts      accounts
	maxChainDepth int
	logger        Logger
	now           func() time.Time
}

// NewUserService creates a new UserService. maxChainDepth bounds the manager cycle check.
func NewUserService(deps UserDeps, maxChainDepth int, logger Logger) UserService {
	if maxChainDepth <= 0 {
		maxChainDepth = 32
	}
	return &userServiceImpl{
		deps: deps,
		accounts: accounts{
			profiles:    deps.Profiles,
			credentials: deps.Credentials,
			hasher:      deps.Hasher,
		},
		maxChainDepth: maxChainDepth,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *userServiceImpl) requireAdmin(actor policy.Actor) error {
	if !actor.Authenticated() {
		return entity.ErrUnauthenticated
	}
	if !policy.CanManageUsers(actor) {
		return fmt.Errorf("manage users: %w", entity.ErrForbidden)
	}
	return nil
}

func validateRoles(roles []entity.Role, verr *entity.ValidationError) []entity.Role {
	seen := make(map[entity.Role]bool, len(roles))
	out := make([]entity.Role, 0, len(roles))
	for _, r := range roles {
		if !r.IsValid() {
			verr.Add("roles", fmt.Sprintf("unknown role %q", r))
			continue
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func (s *userServiceImpl) Invite(ctx context.Context, actor policy.Actor, req InviteRequest) (*entity.Profile, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}

	verr := entity.NewValidationError()
	if len(req.Roles) == 0 {
		req.Roles = []entity.Role{entity.RoleEmployee}
	}
	roles := validateRoles(req.Roles, verr)
	if err := s.accounts.validate(ctx, req.Email, req.Password, req.FullName, verr); err != nil {
		return nil, err
	}

	profileID := uuid.NewString()
	managerID, err := s.checkManager(ctx, actor.CompanyID, profileID, req.ManagerID, verr)
	if err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	profile := &entity.Profile{
		ID:        profileID,
		CompanyID: actor.CompanyID,
		FullName:  strings.TrimSpace(req.FullName),
		Email:     normalizeEmail(req.Email),
		ManagerID: managerID,
		Active:    true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.accounts.create(txCtx, profile, req.Password)
	})
	if err != nil {
		s.logger.Error("Failed to invite user", "error", err, "company_id", actor.CompanyID)
		return nil, err
	}

	s.logger.Info("User invited", "user_id", profile.ID, "company_id", profile.CompanyID, "admin_id", actor.ID)
	return profile, nil
}

// List returns the company directory to admins and managers
func (s *userServiceImpl) List(ctx context.Context, actor policy.Actor) ([]*entity.Profile, error) {
	if !actor.Authenticated() {
		return nil, entity.ErrUnauthenticated
	}
	if !policy.CanManageUsers(actor) && !policy.CanViewCompanyExpenses(actor, actor.CompanyID) {
		return nil, fmt.Errorf("list users: %w", entity.ErrForbidden)
	}

	profiles, err := s.deps.Profiles.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return profiles, nil
}

func (s *userServiceImpl) Update(ctx context.Context, actor policy.Actor, userID string, req UpdateUserRequest) (*entity.Profile, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}

	profile, err := s.deps.Profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if profile == nil || profile.CompanyID != actor.CompanyID {
		return nil, fmt.Errorf("user %s: %w", userID, entity.ErrNotFound)
	}

	verr := entity.NewValidationError()
	if req.FullName != nil {
		if name := strings.TrimSpace(*req.FullName); name == "" {
			verr.Add("full_name", "is required")
		} else {
			profile.FullName = name
		}
	}
	if req.ManagerID != nil {
		managerID, err := s.checkManager(ctx, actor.CompanyID, profile.ID, req.ManagerID, verr)
		if err != nil {
			return nil, err
		}
		profile.ManagerID = managerID
	}

	rolesChanged := req.Roles != nil
	if rolesChanged {
		roles := validateRoles(req.Roles, verr)
		if len(roles) == 0 {
			verr.Add("roles", "at least one role is required")
		}
		if profile.ID == actor.ID && !containsRole(roles, entity.RoleAdmin) {
			verr.Add("roles", "cannot remove your own admin role")
		}
		profile.Roles = roles
	}
	if req.Active != nil {
		if profile.ID == actor.ID && !*req.Active {
			verr.Add("active", "cannot deactivate yourself")
		}
		profile.Active = *req.Active
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	profile.UpdatedAt = s.now()
	err = s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.deps.Profiles.Update(txCtx, profile); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		if rolesChanged {
			if err := s.deps.Profiles.SetRoles(txCtx, profile.ID, profile.Roles); err != nil {
				return fmt.Errorf("set roles: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update user", "error", err, "user_id", userID)
		return nil, err
	}

	s.logger.Info("User updated", "user_id", profile.ID, "admin_id", actor.ID)
	return profile, nil
}

// checkManager validates a proposed manager for userID and returns the value to store.
// The manager must be an active member of the company and must not report to userID.
func (s *userServiceImpl) checkManager(ctx context.Context, companyID, userID string, managerID *string, verr *entity.ValidationError) (*string, error) {
	if managerID == nil || *managerID == "" {
		return nil, nil
	}
	if *managerID == userID {
		verr.Add("manager_id", "a user cannot manage themself")
		return nil, nil
	}

	current := *managerID
	for step := 0; step < s.maxChainDepth && current != ""; step++ {
		p, err := s.deps.Profiles.GetByID(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to load manager: %w", err)
		}
		if p == nil || p.CompanyID != companyID {
			if step == 0 {
				verr.Add("manager_id", "unknown manager")
			}
			return managerID, nil
		}
		if step == 0 && !p.Active {
			verr.Add("manager_id", "manager is inactive")
		}
		if p.ManagerID == nil {
			return managerID, nil
		}
		if *p.ManagerID == userID {
			verr.Add("manager_id", "would create a reporting cycle")
			return managerID, nil
		}
		current = *p.ManagerID
	}
	return managerID, nil
}

func (s *userServiceImpl) Company(ctx context.Context, actor policy.Actor) (*entity.Company, error) {
	if !actor.Authenticated() {
		return nil, entity.ErrUnauthenticated
	}
	company, err := s.deps.Companies.GetByID(ctx, actor.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("company %s: %w", actor.CompanyID, entity.ErrNotFound)
	}
	return company, nil
}

func (s *userServiceImpl) UpdateCompany(ctx context.Context, actor policy.Actor, req UpdateCompanyRequest) (*entity.Company, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	company, err := s.Company(ctx, actor)
	if err != nil {
		return nil, err
	}

	verr := entity.NewValidationError()
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name == "" {
			verr.Add("name", "is required")
		} else {
			company.Name = name
		}
	}
	if req.Currency != nil {
		if !req.Currency.IsValid() {
			verr.Add("currency", "unsupported currency")
		} else {
			company.Currency = *req.Currency
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	company.UpdatedAt = s.now()
	if err := s.deps.Companies.Update(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}
	return company, nil
}

func containsRole(roles []entity.Role, r entity.Role) bool {
	for _, role := range roles {
		if role == r {
			return true
		}
	}
	return false
}
