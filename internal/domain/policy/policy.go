// Package policy holds the pure authorization predicates. Roles are expanded
// into a capability set so checks never compare against a single role.
package policy

import (
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/workflow"
)

// Capability is a single permitted action class
type Capability string

const (
	CapSubmitExpense       Capability = "expense:submit"
	CapViewOwnExpense      Capability = "expense:view_own"
	CapViewCompanyExpenses Capability = "expense:view_company"
	CapDecideApproval      Capability = "approval:decide"
	CapOverrideExpense     Capability = "expense:override"
	CapManageUsers         Capability = "users:manage"
	CapManageRules         Capability = "rules:manage"
)

// baseCapabilities are granted to every active company member
var baseCapabilities = []Capability{CapSubmitExpense, CapViewOwnExpense}

var roleCapabilities = map[entity.Role][]Capability{
	entity.RoleEmployee: {CapSubmitExpense, CapViewOwnExpense},
	entity.RoleManager:  {CapViewCompanyExpenses, CapDecideApproval},
	entity.RoleAdmin: {
		CapViewCompanyExpenses,
		CapDecideApproval,
		CapOverrideExpense,
		CapManageUsers,
		CapManageRules,
	},
}

// CapabilitySet is the union of capabilities granted by a user's roles
type CapabilitySet map[Capability]struct{}

// Has reports whether c is in the set
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// CapabilitiesFor expands roles into a capability set
func CapabilitiesFor(roles []entity.Role) CapabilitySet {
	set := make(CapabilitySet)
	for _, c := range baseCapabilities {
		set[c] = struct{}{}
	}
	for _, r := range roles {
		for _, c := range roleCapabilities[r] {
			set[c] = struct{}{}
		}
	}
	return set
}

// Actor is the authenticated user a request acts on behalf of
type Actor struct {
	ID           string
	CompanyID    string
	Roles        []entity.Role
	capabilities CapabilitySet
}

// NewActor builds an actor and precomputes its capabilities
func NewActor(id, companyID string, roles []entity.Role) Actor {
	return Actor{
		ID:           id,
		CompanyID:    companyID,
		Roles:        roles,
		capabilities: CapabilitiesFor(roles),
	}
}

// ActorFromProfile builds an actor from a loaded profile. Inactive profiles get an empty actor.
func ActorFromProfile(p *entity.Profile) Actor {
	if p == nil || !p.Active {
		return Actor{}
	}
	return NewActor(p.ID, p.CompanyID, p.Roles)
}

// Authenticated reports whether the actor belongs to a company
func (a Actor) Authenticated() bool {
	return a.ID != "" && a.CompanyID != ""
}

// HasCapability checks a capability for an authenticated actor
func HasCapability(a Actor, c Capability) bool {
	if !a.Authenticated() {
		return false
	}
	if a.capabilities == nil {
		return CapabilitiesFor(a.Roles).Has(c)
	}
	return a.capabilities.Has(c)
}

// SameCompany reports whether the actor belongs to companyID
func SameCompany(a Actor, companyID string) bool {
	return a.Authenticated() && a.CompanyID == companyID
}

// CanSubmitExpense allows any authenticated company member to submit
func CanSubmitExpense(a Actor) bool {
	return HasCapability(a, CapSubmitExpense)
}

// CanViewExpense allows the owner, or any manager/admin of the same company.
// Managers are not restricted to their reporting chain.
func CanViewExpense(a Actor, e *entity.Expense) bool {
	if e == nil || !SameCompany(a, e.CompanyID) {
		return false
	}
	if e.EmployeeID == a.ID {
		return HasCapability(a, CapViewOwnExpense)
	}
	return HasCapability(a, CapViewCompanyExpenses)
}

// CanViewCompanyExpenses allows listing expenses of other employees
func CanViewCompanyExpenses(a Actor, companyID string) bool {
	return SameCompany(a, companyID) && HasCapability(a, CapViewCompanyExpenses)
}

// CanDecide allows the assigned approver to act on a pending approval whose lower tiers are satisfied
func CanDecide(a Actor, e *entity.Expense, target *entity.Approval, approvals []*entity.Approval) bool {
	if e == nil || target == nil || !SameCompany(a, e.CompanyID) {
		return false
	}
	if target.ApproverID != a.ID {
		return false
	}
	return workflow.IsActionable(target, approvals)
}

// CanOverride allows admins to force the status of a same-company expense
func CanOverride(a Actor, e *entity.Expense) bool {
	return e != nil && SameCompany(a, e.CompanyID) && HasCapability(a, CapOverrideExpense)
}

// CanManageUsers is admin only
func CanManageUsers(a Actor) bool {
	return HasCapability(a, CapManageUsers)
}

// CanManageRules is admin only
func CanManageRules(a Actor) bool {
	return HasCapability(a, CapManageRules)
}
