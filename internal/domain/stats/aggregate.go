// Package stats aggregates expense amounts per status and tracks the change between snapshots.
package stats

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// Summary is the aggregate of an expense collection.
// Amounts are summed nominally; no currency conversion is done.
type Summary struct {
	Total         decimal.Decimal `json:"total_amount"`
	Pending       decimal.Decimal `json:"pending_amount"`
	Approved      decimal.Decimal `json:"approved_amount"`
	Rejected      decimal.Decimal `json:"rejected_amount"`
	Count         int             `json:"count"`
	Currency      entity.Currency `json:"currency,omitempty"`
	MixedCurrency bool            `json:"mixed_currency"`
}

// Aggregate sums expenses by status. currency is the company default;
// when empty the first expense's currency is used. MixedCurrency flags any other currency.
func Aggregate(expenses []*entity.Expense, currency entity.Currency) Summary {
	s := Summary{
		Total:    decimal.Zero,
		Pending:  decimal.Zero,
		Approved: decimal.Zero,
		Rejected: decimal.Zero,
		Currency: currency,
	}

	for _, e := range expenses {
		if s.Currency == "" {
			s.Currency = e.Currency
		}
		if e.Currency != s.Currency {
			s.MixedCurrency = true
		}

		s.Count++
		s.Total = s.Total.Add(e.Amount)
		switch e.Status {
		case entity.ExpenseStatusPending:
			s.Pending = s.Pending.Add(e.Amount)
		case entity.ExpenseStatusApproved:
			s.Approved = s.Approved.Add(e.Amount)
		case entity.ExpenseStatusRejected:
			s.Rejected = s.Rejected.Add(e.Amount)
		}
	}

	return s
}

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// Change is the percentage change from previous to current, rounded half up.
// 0 to 0 is 0%, 0 to anything positive is +100%.
func Change(previous, current decimal.Decimal) int {
	if previous.IsZero() {
		if current.GreaterThan(decimal.Zero) {
			return 100
		}
		return 0
	}
	pct := current.Sub(previous).Div(previous).Mul(hundred)
	return int(pct.Add(half).Floor().IntPart())
}

// Deltas holds the directional change of each summary figure
type Deltas struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Count    int `json:"count"`
}

// Compare computes the deltas between two summaries
func Compare(previous, current Summary) Deltas {
	return Deltas{
		Total:    Change(previous.Total, current.Total),
		Pending:  Change(previous.Pending, current.Pending),
		Approved: Change(previous.Approved, current.Approved),
		Rejected: Change(previous.Rejected, current.Rejected),
		Count:    Change(decimal.NewFromInt(int64(previous.Count)), decimal.NewFromInt(int64(current.Count))),
	}
}

// Snapshot pairs the latest summary with the one it replaced
type Snapshot struct {
	Previous   Summary   `json:"previous"`
	Current    Summary   `json:"current"`
	Deltas     Deltas    `json:"deltas"`
	ComputedAt time.Time `json:"computed_at"`
}

// Tracker keeps the previous and current summary of one scope
type Tracker struct {
	mu       sync.RWMutex
	snapshot Snapshot
	seeded   bool
}

// NewTracker creates a tracker whose previous summary is all zero
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe records a freshly computed summary and returns the new snapshot
func (t *Tracker) Observe(current Summary, at time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	previous := Aggregate(nil, current.Currency)
	if t.seeded {
		previous = t.snapshot.Current
	}

	t.snapshot = Snapshot{
		Previous:   previous,
		Current:    current,
		Deltas:     Compare(previous, current),
		ComputedAt: at,
	}
	t.seeded = true
	return t.snapshot
}

// Latest returns the last snapshot and whether one was observed
func (t *Tracker) Latest() (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot, t.seeded
}
