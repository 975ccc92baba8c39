package workflow

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// Mock implementations

type mockProfileRepo struct {
	profiles map[string]*entity.Profile
}

func (m *mockProfileRepo) Create(ctx context.Context, p *entity.Profile) error {
	m.profiles[p.ID] = p
	return nil
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	return m.profiles[id], nil
}

func (m *mockProfileRepo) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	for _, p := range m.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProfileRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.Profile, error) {
	return nil, nil
}

func (m *mockProfileRepo) Update(ctx context.Context, p *entity.Profile) error { return nil }

func (m *mockProfileRepo) SetRoles(ctx context.Context, userID string, roles []entity.Role) error {
	return nil
}

type mockRuleRepo struct {
	rules []*entity.ApprovalRule
}

func (m *mockRuleRepo) Create(ctx context.Context, r *entity.ApprovalRule) error {
	m.rules = append(m.rules, r)
	return nil
}

func (m *mockRuleRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.ApprovalRule, error) {
	var out []*entity.ApprovalRule
	for _, r := range m.rules {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SequenceOrder < out[j].SequenceOrder })
	return out, nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, companyID, id string) (bool, error) {
	return false, nil
}

type mockApprovalRepo struct {
	approvals map[string]*entity.Approval
	order     []string
	casErr    error
}

func newMockApprovalRepo() *mockApprovalRepo {
	return &mockApprovalRepo{approvals: make(map[string]*entity.Approval)}
}

func (m *mockApprovalRepo) CreateBatch(ctx context.Context, approvals []*entity.Approval) error {
	for _, a := range approvals {
		cp := *a
		m.approvals[a.ID] = &cp
		m.order = append(m.order, a.ID)
	}
	return nil
}

func (m *mockApprovalRepo) GetByID(ctx context.Context, id string) (*entity.Approval, error) {
	if a, ok := m.approvals[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *mockApprovalRepo) ListByExpense(ctx context.Context, expenseID string) ([]*entity.Approval, error) {
	var out []*entity.Approval
	for _, id := range m.order {
		if a := m.approvals[id]; a.ExpenseID == expenseID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SequenceOrder < out[j].SequenceOrder })
	return out, nil
}

func (m *mockApprovalRepo) ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.Approval, error) {
	return nil, nil
}

func (m *mockApprovalRepo) CompareAndSwap(ctx context.Context, a *entity.Approval, expected time.Time) error {
	if m.casErr != nil {
		return m.casErr
	}
	stored, ok := m.approvals[a.ID]
	if !ok || !stored.UpdatedAt.Equal(expected) {
		return entity.ErrConflict
	}
	cp := *a
	m.approvals[a.ID] = &cp
	return nil
}

type mockLogRepo struct {
	logs []*entity.DecisionLog
}

func (m *mockLogRepo) Create(ctx context.Context, l *entity.DecisionLog) error {
	m.logs = append(m.logs, l)
	return nil
}

func (m *mockLogRepo) ListByExpense(ctx context.Context, expenseID string) ([]*entity.DecisionLog, error) {
	return m.logs, nil
}

// fixture

type fixture struct {
	profiles  *mockProfileRepo
	rules     *mockRuleRepo
	approvals *mockApprovalRepo
	logs      *mockLogRepo
	engine    Engine
}

func strPtr(s string) *string { return &s }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		profiles:  &mockProfileRepo{profiles: make(map[string]*entity.Profile)},
		rules:     &mockRuleRepo{},
		approvals: newMockApprovalRepo(),
		logs:      &mockLogRepo{},
	}

	f.addProfile("ceo", nil)
	f.addProfile("mgr", strPtr("ceo"))
	f.addProfile("emp", strPtr("mgr"))
	f.addProfile("finance", strPtr("ceo"))
	f.addProfile("auditor", strPtr("ceo"))

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.engine = NewEngine(f.profiles, f.rules, f.approvals, f.logs, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return f
}

func (f *fixture) addProfile(id string, managerID *string) *entity.Profile {
	p := &entity.Profile{ID: id, CompanyID: "co-1", FullName: id, ManagerID: managerID, Active: true}
	f.profiles.profiles[id] = p
	return p
}

func (f *fixture) addRule(id string, typ entity.RuleType, seq int, approver string, threshold string) {
	r := &entity.ApprovalRule{ID: id, CompanyID: "co-1", RuleType: typ, SequenceOrder: seq}
	if approver != "" {
		r.RequiredApproverID = strPtr(approver)
	}
	if threshold != "" {
		d := decimal.RequireFromString(threshold)
		r.Threshold = &d
	}
	f.rules.rules = append(f.rules.rules, r)
}

func newExpense(id, amount string) *entity.Expense {
	return &entity.Expense{
		ID:         id,
		CompanyID:  "co-1",
		EmployeeID: "emp",
		Amount:     decimal.RequireFromString(amount),
		Currency:   entity.CurrencyUSD,
		Category:   entity.CategoryMeals,
		Status:     entity.ExpenseStatusPending,
	}
}

func (f *fixture) decide(t *testing.T, exp *entity.Expense, approver string, d entity.Decision) (*Outcome, error) {
	t.Helper()
	approvals, _ := f.approvals.ListByExpense(context.Background(), exp.ID)
	var target string
	for _, a := range approvals {
		if a.ApproverID == approver {
			target = a.ID
		}
	}
	require.NotEmpty(t, target, "no approval for %s", approver)

	out, err := f.engine.Decide(context.Background(), exp, DecideRequest{ApprovalID: target, ApproverID: approver, Decision: d})
	if err == nil {
		exp.Status = out.Status
	}
	return out, err
}

func TestMaterialize_FallbackToDirectManager(t *testing.T) {
	f := newFixture(t)
	exp := newExpense("e1", "50")

	approvals, err := f.engine.Materialize(context.Background(), exp)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "mgr", approvals[0].ApproverID)
	assert.Equal(t, 1, approvals[0].SequenceOrder)
	assert.Equal(t, entity.ApprovalStatusPending, approvals[0].Status)
}

func TestMaterialize_NoManager(t *testing.T) {
	f := newFixture(t)
	f.profiles.profiles["emp"].ManagerID = nil

	_, err := f.engine.Materialize(context.Background(), newExpense("e1", "50"))
	assert.ErrorIs(t, err, entity.ErrNoApproverFound)
	assert.Empty(t, f.approvals.approvals)
}

func TestMaterialize_ThresholdRule(t *testing.T) {
	f := newFixture(t)
	f.addRule("r-mgr", entity.RuleTypeSequential, 1, "", "")
	f.addRule("r-fin", entity.RuleTypeThreshold, 2, "finance", "500")

	t.Run("above threshold", func(t *testing.T) {
		approvals, err := f.engine.Materialize(context.Background(), newExpense("big", "1200"))
		require.NoError(t, err)
		require.Len(t, approvals, 2)
		assert.Equal(t, "mgr", approvals[0].ApproverID)
		assert.Equal(t, "finance", approvals[1].ApproverID)
		assert.Less(t, approvals[0].SequenceOrder, approvals[1].SequenceOrder)
	})

	t.Run("at threshold", func(t *testing.T) {
		approvals, err := f.engine.Materialize(context.Background(), newExpense("edge", "500"))
		require.NoError(t, err)
		require.Len(t, approvals, 1)
		assert.Equal(t, "mgr", approvals[0].ApproverID)
	})
}

func TestMaterialize_ThresholdOnlyKeepsManager(t *testing.T) {
	f := newFixture(t)
	f.addRule("r-fin", entity.RuleTypeThreshold, 2, "finance", "500")

	small, err := f.engine.Materialize(context.Background(), newExpense("small", "50"))
	require.NoError(t, err)
	require.Len(t, small, 1)
	assert.Equal(t, "mgr", small[0].ApproverID)

	big, err := f.engine.Materialize(context.Background(), newExpense("big", "1200"))
	require.NoError(t, err)
	require.Len(t, big, 2)
	assert.Equal(t, "mgr", big[0].ApproverID)
	assert.Equal(t, defaultSequence, big[0].SequenceOrder)
	assert.Equal(t, "finance", big[1].ApproverID)
	assert.Equal(t, 2, big[1].SequenceOrder)
}

func TestMaterialize_RequiredApprover(t *testing.T) {
	t.Run("inactive", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.profiles["finance"].Active = false
		f.addRule("r1", entity.RuleTypeSequential, 1, "finance", "")

		_, err := f.engine.Materialize(context.Background(), newExpense("e1", "10"))
		assert.ErrorIs(t, err, entity.ErrNoApproverFound)
	})

	t.Run("other company", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.profiles["finance"].CompanyID = "co-2"
		f.addRule("r1", entity.RuleTypeSequential, 1, "finance", "")

		_, err := f.engine.Materialize(context.Background(), newExpense("e1", "10"))
		assert.ErrorIs(t, err, entity.ErrNoApproverFound)
	})

	t.Run("self routes to manager", func(t *testing.T) {
		f := newFixture(t)
		f.addRule("r1", entity.RuleTypeSequential, 1, "emp", "")

		approvals, err := f.engine.Materialize(context.Background(), newExpense("e1", "10"))
		require.NoError(t, err)
		require.Len(t, approvals, 1)
		assert.Equal(t, "mgr", approvals[0].ApproverID)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		f := newFixture(t)
		f.addRule("r1", entity.RuleTypeSequential, 1, "", "")
		f.addRule("r2", entity.RuleTypeSequential, 1, "mgr", "")

		approvals, err := f.engine.Materialize(context.Background(), newExpense("e1", "10"))
		require.NoError(t, err)
		assert.Len(t, approvals, 1)
	})
}

func TestChainResolver(t *testing.T) {
	t.Run("skips inactive manager", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.profiles["mgr"].Active = false

		got, err := NewChainResolver(f.profiles, 0).Resolve(context.Background(), f.profiles.profiles["emp"])
		require.NoError(t, err)
		assert.Equal(t, "ceo", got.ID)
	})

	t.Run("cycle", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.profiles["mgr"].Active = false
		f.profiles.profiles["mgr"].ManagerID = strPtr("emp")

		_, err := NewChainResolver(f.profiles, 0).Resolve(context.Background(), f.profiles.profiles["emp"])
		assert.ErrorIs(t, err, entity.ErrNoApproverFound)
	})

	t.Run("depth limit", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.profiles["mgr"].Active = false
		f.profiles.profiles["ceo"].Active = false

		_, err := NewChainResolver(f.profiles, 1).Resolve(context.Background(), f.profiles.profiles["emp"])
		assert.ErrorIs(t, err, entity.ErrNoApproverFound)
	})

	t.Run("missing manager", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.profiles["emp"].ManagerID = strPtr("ghost")

		_, err := NewChainResolver(f.profiles, 0).Resolve(context.Background(), f.profiles.profiles["emp"])
		assert.ErrorIs(t, err, entity.ErrNoApproverFound)
	})
}

func TestDecide_SingleApproval(t *testing.T) {
	f := newFixture(t)
	exp := newExpense("e1", "50")
	_, err := f.engine.Materialize(context.Background(), exp)
	require.NoError(t, err)

	out, err := f.decide(t, exp, "mgr", entity.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusApproved, out.Status)
	assert.True(t, out.StatusChanged())
	require.Len(t, f.logs.logs, 1)
	assert.Equal(t, entity.ActionApproved, f.logs.logs[0].Action)
}

func TestDecide_VetoClosesRemaining(t *testing.T) {
	f := newFixture(t)
	f.addRule("r-mgr", entity.RuleTypeSequential, 1, "", "")
	f.addRule("r-fin", entity.RuleTypeThreshold, 2, "finance", "500")
	exp := newExpense("e1", "1200")
	_, err := f.engine.Materialize(context.Background(), exp)
	require.NoError(t, err)

	out, err := f.decide(t, exp, "mgr", entity.DecisionRejected)
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusRejected, out.Status)
	require.Len(t, out.Closed, 1)
	assert.Equal(t, "finance", out.Closed[0].ApproverID)
	assert.Equal(t, entity.ApprovalStatusMoot, out.Closed[0].Status)

	_, err = f.decide(t, exp, "finance", entity.DecisionApproved)
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestDecide_SequentialOrder(t *testing.T) {
	f := newFixture(t)
	f.addRule("r-mgr", entity.RuleTypeSequential, 1, "", "")
	f.addRule("r-fin", entity.RuleTypeSequential, 2, "finance", "")
	exp := newExpense("e1", "100")
	approvals, err := f.engine.Materialize(context.Background(), exp)
	require.NoError(t, err)

	_, err = f.decide(t, exp, "finance", entity.DecisionApproved)
	assert.ErrorIs(t, err, entity.ErrForbidden)
	assert.Equal(t, entity.ApprovalStatusPending, f.approvals.approvals[approvals[1].ID].Status)
	assert.Empty(t, f.logs.logs)

	_, err = f.decide(t, exp, "finance", entity.DecisionRejected)
	assert.ErrorIs(t, err, entity.ErrForbidden)

	out, err := f.decide(t, exp, "mgr", entity.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusPending, out.Status)
	assert.False(t, out.StatusChanged())

	out, err = f.decide(t, exp, "finance", entity.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusApproved, out.Status)
}

func TestDecide_Rejections(t *testing.T) {
	f := newFixture(t)
	f.addRule("r-mgr", entity.RuleTypeSequential, 1, "", "")
	f.addRule("r-fin", entity.RuleTypeSequential, 2, "finance", "")
	exp := newExpense("e1", "100")
	approvals, err := f.engine.Materialize(context.Background(), exp)
	require.NoError(t, err)
	mgrApproval := approvals[0]

	t.Run("wrong approver", func(t *testing.T) {
		_, err := f.engine.Decide(context.Background(), exp, DecideRequest{
			ApprovalID: mgrApproval.ID, ApproverID: "auditor", Decision: entity.DecisionApproved,
		})
		assert.ErrorIs(t, err, entity.ErrForbidden)
	})

	t.Run("unknown approval", func(t *testing.T) {
		_, err := f.engine.Decide(context.Background(), exp, DecideRequest{
			ApprovalID: "nope", ApproverID: "mgr", Decision: entity.DecisionApproved,
		})
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("bad decision", func(t *testing.T) {
		_, err := f.engine.Decide(context.Background(), exp, DecideRequest{
			ApprovalID: mgrApproval.ID, ApproverID: "mgr", Decision: "maybe",
		})
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("re-decision", func(t *testing.T) {
		_, err := f.decide(t, exp, "mgr", entity.DecisionApproved)
		require.NoError(t, err)
		before := *f.approvals.approvals[mgrApproval.ID]

		_, err = f.decide(t, exp, "mgr", entity.DecisionApproved)
		assert.ErrorIs(t, err, entity.ErrInvalidState)
		assert.Equal(t, before, *f.approvals.approvals[mgrApproval.ID])
	})
}

func TestDecide_AnyTierFirstResponseWins(t *testing.T) {
	f := newFixture(t)
	f.addRule("r-fin", entity.RuleTypeParallelAny, 1, "finance", "")
	f.addRule("r-aud", entity.RuleTypeParallelAny, 1, "auditor", "")
	exp := newExpense("e1", "100")
	_, err := f.engine.Materialize(context.Background(), exp)
	require.NoError(t, err)

	out, err := f.decide(t, exp, "auditor", entity.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusApproved, out.Status)
	require.Len(t, out.Closed, 1)
	assert.Equal(t, "finance", out.Closed[0].ApproverID)
}

func TestDecide_AllTierNeedsEveryone(t *testing.T) {
	f := newFixture(t)
	f.addRule("r-fin", entity.RuleTypeParallelAll, 1, "finance", "")
	f.addRule("r-aud", entity.RuleTypeParallelAll, 1, "auditor", "")
	exp := newExpense("e1", "100")
	_, err := f.engine.Materialize(context.Background(), exp)
	require.NoError(t, err)

	out, err := f.decide(t, exp, "finance", entity.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusPending, out.Status)
	assert.Empty(t, out.Closed)

	out, err = f.decide(t, exp, "auditor", entity.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusApproved, out.Status)
}

func TestDecide_Conflict(t *testing.T) {
	f := newFixture(t)
	exp := newExpense("e1", "50")
	_, err := f.engine.Materialize(context.Background(), exp)
	require.NoError(t, err)

	f.approvals.casErr = entity.ErrConflict
	_, err = f.decide(t, exp, "mgr", entity.DecisionApproved)
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestCloseOpen(t *testing.T) {
	f := newFixture(t)
	f.addRule("r-mgr", entity.RuleTypeSequential, 1, "", "")
	f.addRule("r-fin", entity.RuleTypeSequential, 2, "finance", "")
	exp := newExpense("e1", "100")
	_, err := f.engine.Materialize(context.Background(), exp)
	require.NoError(t, err)

	closed, err := f.engine.CloseOpen(context.Background(), exp, "ceo", "override")
	require.NoError(t, err)
	assert.Len(t, closed, 2)
	for _, a := range f.approvals.approvals {
		assert.Equal(t, entity.ApprovalStatusMoot, a.Status)
		assert.Equal(t, "override", a.Comment)
	}
	assert.Len(t, f.logs.logs, 2)
}

func TestApproverIDs(t *testing.T) {
	ids := ApproverIDs([]*entity.Approval{
		{ApproverID: "a"}, {ApproverID: "b"}, {ApproverID: "a"},
	})
	assert.Equal(t, []string{"a", "b"}, ids)
}
