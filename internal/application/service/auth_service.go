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

// AuthService is the identity surface: sign-up, sign-in, sign-out and session reads
type AuthService interface {
	SignUp(ctx context.Context, req SignUpRequest) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (policy.Actor, *entity.Profile, error)
}

// SignUpRequest registers a new company with its first user as admin
type SignUpRequest struct {
	Email       string          `json:"email"`
	Password    string          `json:"password"`
	FullName    string          `json:"full_name"`
	CompanyName string          `json:"company_name"`
	Currency    entity.Currency `json:"currency"`
}

// Session is an issued access token
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *entity.Profile `json:"profile"`
}

// AuthDeps groups the collaborators of the auth service
type AuthDeps struct {
	Companies   port.CompanyRepository
	Profiles    port.ProfileRepository
	Credentials port.CredentialRepository
	Sessions    port.SessionRepository
	Hasher      port.PasswordHasher
	Tokens      port.TokenIssuer
	TxManager   port.TransactionManager
}

type authServiceImpl struct {
	deps     AuthDeps
	accounts accounts
	logger   Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(deps AuthDeps, logger Logger) AuthService {
	return &authServiceImpl{
		deps: deps,
		accounts: accounts{
			profiles:    deps.Profiles,
			credentials: deps.Credentials,
			hasher:      deps.Hasher,
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *authServiceImpl) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	if req.Currency == "" {
		req.Currency = entity.CurrencyUSD
	}

	verr := entity.NewValidationError()
	if strings.TrimSpace(req.CompanyName) == "" {
		verr.Add("company_name", "is required")
	}
	if !req.Currency.IsValid() {
		verr.Add("currency", "unsupported currency")
	}
	if err := s.accounts.validate(ctx, req.Email, req.Password, req.FullName, verr); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	company := &entity.Company{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.CompanyName),
		Currency:  req.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	profile := &entity.Profile{
		ID:        uuid.NewString(),
		CompanyID: company.ID,
		FullName:  strings.TrimSpace(req.FullName),
		Email:     normalizeEmail(req.Email),
		Active:    true,
		Roles:     []entity.Role{entity.RoleAdmin},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.deps.Companies.Create(txCtx, company); err != nil {
			return fmt.Errorf("create company: %w", err)
		}
		return s.accounts.create(txCtx, profile, req.Password)
	})
	if err != nil {
		s.logger.Error("Sign-up failed", "error", err, "email", profile.Email)
		return nil, err
	}

	s.logger.Info("Company registered", "company_id", company.ID, "admin_id", profile.ID)
	return s.issue(profile)
}

func (s *authServiceImpl) SignIn(ctx context.Context, email, password string) (*Session, error) {
	profile, err := s.deps.Profiles.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if profile == nil || !profile.Active {
		return nil, entity.ErrUnauthenticated
	}

	hash, err := s.deps.Credentials.GetHash(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if hash == "" || s.deps.Hasher.Compare(hash, password) != nil {
		s.logger.Info("Sign-in rejected", "user_id", profile.ID)
		return nil, entity.ErrUnauthenticated
	}

	return s.issue(profile)
}

func (s *authServiceImpl) issue(profile *entity.Profile) (*Session, error) {
	token, claims, err := s.deps.Tokens.Issue(profile.ID, profile.CompanyID, profile.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt, Profile: profile}, nil
}

// SignOut revokes the token until it would have expired anyway
func (s *authServiceImpl) SignOut(ctx context.Context, token string) error {
	claims, err := s.deps.Tokens.Parse(token)
	if err != nil {
		return entity.ErrUnauthenticated
	}
	if err := s.deps.Sessions.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.logger.Info("Signed out", "user_id", claims.UserID)
	return nil
}

// Authenticate resolves a token to an actor. Roles come from the stored
// profile, so role edits apply without a new sign-in.
func (s *authServiceImpl) Authenticate(ctx context.Context, token string) (policy.Actor, *entity.Profile, error) {
	claims, err := s.deps.Tokens.Parse(token)
	if err != nil {
		return policy.Actor{}, nil, entity.ErrUnauthenticated
	}

	revoked, err := s.deps.Sessions.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return policy.Actor{}, nil, fmt.Errorf("failed to check session: %w", err)
	}
	if revoked {
		return policy.Actor{}, nil, entity.ErrUnauthenticated
	}

	profile, err := s.deps.Profiles.GetByID(ctx, claims.UserID)
	if err != nil {
		return policy.Actor{}, nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil || !profile.Active || profile.CompanyID != claims.CompanyID {
		return policy.Actor{}, nil, entity.ErrUnauthenticated
	}

	return policy.ActorFromProfile(profile), profile, nil
}
