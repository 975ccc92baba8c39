package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// DefaultMaxChainDepth bounds the reporting-chain walk
const DefaultMaxChainDepth = 32

// ChainResolver finds approvers along an employee's reporting chain
type ChainResolver struct {
	profiles port.ProfileRepository
	maxDepth int
}

// NewChainResolver creates a resolver. A non-positive maxDepth uses DefaultMaxChainDepth.
func NewChainResolver(profiles port.ProfileRepository, maxDepth int) *ChainResolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxChainDepth
	}
	return &ChainResolver{profiles: profiles, maxDepth: maxDepth}
}

// Resolve returns the nearest eligible manager above employee: active, in the
// same company and not the employee. Cycles, missing managers and chains deeper
// than the limit fail with entity.ErrNoApproverFound.
func (r *ChainResolver) Resolve(ctx context.Context, employee *entity.Profile) (*entity.Profile, error) {
	visited := map[string]bool{employee.ID: true}
	current := employee

	for step := 0; step < r.maxDepth; step++ {
		if current.ManagerID == nil || *current.ManagerID == "" {
			return nil, fmt.Errorf("%w: reporting chain of %s ends without an eligible manager", entity.ErrNoApproverFound, employee.ID)
		}

		managerID := *current.ManagerID
		if visited[managerID] {
			return nil, fmt.Errorf("%w: reporting chain of %s contains a cycle at %s", entity.ErrNoApproverFound, employee.ID, managerID)
		}
		visited[managerID] = true

		manager, err := r.profiles.GetByID(ctx, managerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load manager %s: %w", managerID, err)
		}
		if manager == nil {
			return nil, fmt.Errorf("%w: manager %s does not exist", entity.ErrNoApproverFound, managerID)
		}
		if eligible(manager, employee) {
			return manager, nil
		}
		current = manager
	}

	return nil, fmt.Errorf("%w: reporting chain of %s exceeds %d steps", entity.ErrNoApproverFound, employee.ID, r.maxDepth)
}

// eligible reports whether p may approve expenses of employee
func eligible(p, employee *entity.Profile) bool {
	return p.Active && p.CompanyID == employee.CompanyID && p.ID != employee.ID
}
