package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

const minPasswordLength = 8

// accounts creates profiles together with their credentials
type accounts struct {
	profiles    port.ProfileRepository
	credentials port.CredentialRepository
	hasher      port.PasswordHasher
}

// normalizeEmail lowercases and trims an address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validate records problems with the account fields
func (a accounts) validate(ctx context.Context, email, password, fullName string, verr *entity.ValidationError) error {
	if strings.TrimSpace(fullName) == "" {
		verr.Add("full_name", "is required")
	}
	if len(password) < minPasswordLength {
		verr.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != strings.TrimSpace(email) {
		verr.Add("email", "is not a valid address")
		return nil
	}

	existing, err := a.profiles.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to look up email: %w", err)
	}
	if existing != nil {
		verr.Add("email", "is already registered")
	}
	return nil
}

// create persists the profile with its roles and the password hash. Call inside a transaction.
func (a accounts) create(ctx context.Context, profile *entity.Profile, password string) error {
	hash, err := a.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := a.profiles.Create(ctx, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	if err := a.credentials.Create(ctx, profile.ID, hash); err != nil {
		return fmt.Errorf("create credentials: %w", err)
	}
	return nil
}
