package listing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sample() []*entity.Expense {
	return []*entity.Expense{
		{ID: "b", EmployeeName: "Ana Ruiz", Amount: decimal.NewFromInt(50), Currency: entity.CurrencyUSD,
			Category: entity.CategoryMeals, Description: "Team lunch", Status: entity.ExpenseStatusPending,
			ExpenseDate: base, CreatedAt: base.Add(time.Hour)},
		{ID: "a", EmployeeName: "Ben Cho", Amount: decimal.NewFromInt(1200), Currency: entity.CurrencyEUR,
			Category: entity.CategoryTravel, Description: "Flight to Berlin", Status: entity.ExpenseStatusApproved,
			ExpenseDate: base.AddDate(0, 0, -3), CreatedAt: base.Add(time.Hour)},
		{ID: "c", EmployeeName: "ana ruiz", Amount: decimal.NewFromInt(50), Currency: entity.CurrencyUSD,
			Category: entity.CategorySoftware, Status: entity.ExpenseStatusRejected,
			ExpenseDate: base.AddDate(0, 0, -1), CreatedAt: base},
	}
}

func ids(expenses []*entity.Expense) []string {
	out := make([]string, len(expenses))
	for i, e := range expenses {
		out[i] = e.ID
	}
	return out
}

func TestApply_DefaultOrder(t *testing.T) {
	// a and b share created_at; the id tie-break keeps a before b
	assert.Equal(t, []string{"a", "b", "c"}, ids(Apply(sample(), Query{})))
}

func TestApply_Filters(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"category", Query{Category: entity.CategoryTravel}, []string{"a"}},
		{"status", Query{Status: entity.ExpenseStatusRejected}, []string{"c"}},
		{"search employee case-insensitive", Query{Search: "ANA"}, []string{"b", "c"}},
		{"search description", Query{Search: "berlin"}, []string{"a"}},
		{"search currency", Query{Search: "eur"}, []string{"a"}},
		{"search category", Query{Search: "soft"}, []string{"c"}},
		{"no match", Query{Search: "zzz"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(sample(), tt.query)))
		})
	}
}

func TestApply_SortStableTieBreak(t *testing.T) {
	asc := Apply(sample(), Query{SortBy: SortByAmount, Order: OrderAsc})
	assert.Equal(t, []string{"b", "c", "a"}, ids(asc))

	desc := Apply(sample(), Query{SortBy: SortByAmount, Order: OrderDesc})
	assert.Equal(t, []string{"a", "b", "c"}, ids(desc))

	byEmployee := Apply(sample(), Query{SortBy: SortByEmployee, Order: OrderAsc})
	assert.Equal(t, []string{"b", "c", "a"}, ids(byEmployee))

	byDate := Apply(sample(), Query{SortBy: SortByDate, Order: OrderAsc})
	assert.Equal(t, []string{"a", "c", "b"}, ids(byDate))

	byCategory := Apply(sample(), Query{SortBy: SortByCategory, Order: OrderAsc})
	assert.Equal(t, []string{"b", "c", "a"}, ids(byCategory))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := sample()
	_ = Apply(in, Query{SortBy: SortByAmount, Order: OrderDesc})
	assert.Equal(t, []string{"b", "a", "c"}, ids(in))
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, Query{}.Validate())
	assert.NoError(t, Query{Category: entity.CategoryMeals, SortBy: SortByDate, Order: OrderAsc}.Validate())

	err := Query{Category: "Gifts", Status: "lost", SortBy: "size", Order: "up"}.Validate()
	require.Error(t, err)
	verr, ok := err.(*entity.ValidationError)
	require.True(t, ok)
	assert.Len(t, verr.Fields, 4)
}

func TestApplyQueue(t *testing.T) {
	expenses := sample()
	items := []*QueueItem{
		{Approval: &entity.Approval{ID: "q2", CreatedAt: base.Add(2 * time.Hour)}, Expense: expenses[0]},
		{Approval: &entity.Approval{ID: "q1", CreatedAt: base}, Expense: expenses[1]},
		{Approval: &entity.Approval{ID: "q3", CreatedAt: base.Add(time.Hour)}, Expense: expenses[2]},
	}

	queueIDs := func(items []*QueueItem) []string {
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = item.Approval.ID
		}
		return out
	}

	assert.Equal(t, []string{"q1", "q3", "q2"}, queueIDs(ApplyQueue(items, Query{})))
	assert.Equal(t, []string{"q1", "q2", "q3"}, queueIDs(ApplyQueue(items, Query{SortBy: SortByAmount, Order: OrderDesc})))
	assert.Equal(t, []string{"q3", "q2"}, queueIDs(ApplyQueue(items, Query{Search: "ana"})))
}
