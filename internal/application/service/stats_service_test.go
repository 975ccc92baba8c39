package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approvals/internal/application/feed"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

func TestStatsService_RecomputesOnChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.stats.Snapshot(ctx, h.actor("admin"), feed.Scope{})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Current.Count)
	assert.Equal(t, entity.CurrencyUSD, first.Current.Currency)
	assert.Equal(t, 1, h.stats.TrackedScopes())

	exp := h.submit(t, "emp", "100", entity.CategoryMeals)

	snap, err := h.stats.Snapshot(ctx, h.actor("admin"), feed.Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Current.Count)
	assert.True(t, snap.Current.Pending.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 0, snap.Previous.Count)
	assert.Equal(t, 100, snap.Deltas.Total)

	_, err = h.decide("mgr", h.approvalFor(t, exp.ID, "mgr").ID, entity.DecisionApproved)
	require.NoError(t, err)

	snap, err = h.stats.Snapshot(ctx, h.actor("admin"), feed.Scope{})
	require.NoError(t, err)
	assert.True(t, snap.Current.Approved.Equal(decimal.NewFromInt(100)))
	assert.True(t, snap.Current.Pending.IsZero())
	assert.True(t, snap.Current.Total.Equal(snap.Current.Pending.Add(snap.Current.Approved).Add(snap.Current.Rejected)))
	assert.Equal(t, 0, snap.Deltas.Total)
}

func TestStatsService_OverrideReachesDecidedApprover(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addRule("r-mgr", entity.RuleTypeSequential, 1, "", "")
	h.addRule("r-fin", entity.RuleTypeSequential, 2, "finance", "")

	exp := h.submit(t, "emp", "100", entity.CategoryTravel)
	_, err := h.decide("mgr", h.approvalFor(t, exp.ID, "mgr").ID, entity.DecisionApproved)
	require.NoError(t, err)

	scope := feed.Scope{ManagerID: "mgr"}
	before, err := h.stats.Snapshot(ctx, h.actor("admin"), scope)
	require.NoError(t, err)
	assert.True(t, before.Current.Pending.Equal(decimal.NewFromInt(100)))

	_, err = h.svc.Override(ctx, h.actor("admin"), OverrideRequest{ExpenseID: exp.ID, Status: entity.ExpenseStatusRejected})
	require.NoError(t, err)

	after, err := h.stats.Snapshot(ctx, h.actor("admin"), scope)
	require.NoError(t, err)
	assert.True(t, after.Current.Pending.IsZero())
	assert.True(t, after.Current.Rejected.Equal(decimal.NewFromInt(100)))
}

func TestStatsService_Scoping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.submit(t, "emp", "10", entity.CategoryMeals)
	h.submit(t, "emp2", "20", entity.CategoryMeals)

	own, err := h.stats.Snapshot(ctx, h.actor("emp"), feed.Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, own.Current.Count)
	assert.True(t, own.Current.Total.Equal(decimal.NewFromInt(10)))

	_, err = h.stats.Snapshot(ctx, h.actor("emp"), feed.Scope{EmployeeID: "emp2"})
	assert.ErrorIs(t, err, entity.ErrForbidden)

	// a change in another employee's scope does not touch this one
	h.submit(t, "emp2", "30", entity.CategoryMeals)
	own, err = h.stats.Snapshot(ctx, h.actor("emp"), feed.Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, own.Current.Count)

	h.stats.Close()
	assert.Equal(t, 0, h.stats.TrackedScopes())
	assert.Equal(t, 0, h.feed.SubscriptionCount())
}
