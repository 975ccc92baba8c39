package entity

import "time"

// Role is a named role assignment. A user may hold several at once.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// Profile is the company-scoped user record. Its ID is shared with the identity provider.
// Profiles are deactivated, never deleted.
type Profile struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	ManagerID *string   `json:"manager_id,omitempty"`
	Active    bool      `json:"active"`
	Roles     []Role    `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRole reports whether the profile holds role r
func (p *Profile) HasRole(r Role) bool {
	for _, role := range p.Roles {
		if role == r {
			return true
		}
	}
	return false
}
