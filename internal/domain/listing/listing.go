// Package listing filters and sorts already-scoped expense and approval lists.
// Results are stable: equal sort keys are ordered by id.
package listing

import (
	"sort"
	"strings"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// SortField selects the comparator
type SortField string

const (
	SortByCreated  SortField = "created"
	SortByDate     SortField = "date"
	SortByAmount   SortField = "amount"
	SortByCategory SortField = "category"
	SortByEmployee SortField = "employee"
)

// IsValid reports whether f is a known sort field
func (f SortField) IsValid() bool {
	switch f {
	case SortByCreated, SortByDate, SortByAmount, SortByCategory, SortByEmployee:
		return true
	}
	return false
}

// Order is the sort direction
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Query describes presentation-level filtering. Zero values mean "no filter";
// the default order is newest first.
type Query struct {
	Category entity.Category
	Status   entity.ExpenseStatus
	Search   string
	SortBy   SortField
	Order    Order
}

// Validate rejects unknown filter values
func (q Query) Validate() error {
	verr := entity.NewValidationError()
	if q.Category != "" && !q.Category.IsValid() {
		verr.Add("category", "unknown category")
	}
	if q.Status != "" && !q.Status.IsValid() {
		verr.Add("status", "unknown status")
	}
	if q.SortBy != "" && !q.SortBy.IsValid() {
		verr.Add("sort", "unknown sort field")
	}
	if q.Order != "" && q.Order != OrderAsc && q.Order != OrderDesc {
		verr.Add("order", "must be asc or desc")
	}
	return verr.OrNil()
}

// Matches reports whether e passes the category, status and search filters.
// Search is a case-insensitive substring match over employee name, category, description and currency.
func (q Query) Matches(e *entity.Expense) bool {
	if q.Category != "" && e.Category != q.Category {
		return false
	}
	if q.Status != "" && e.Status != q.Status {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	if term == "" {
		return true
	}
	for _, field := range []string{e.EmployeeName, string(e.Category), e.Description, string(e.Currency)} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Apply returns a new slice with the filtered and sorted expenses
func Apply(expenses []*entity.Expense, q Query) []*entity.Expense {
	out := make([]*entity.Expense, 0, len(expenses))
	for _, e := range expenses {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	Sort(out, q.SortBy, q.Order)
	return out
}

// Sort orders expenses in place. The default is created_at descending.
func Sort(expenses []*entity.Expense, field SortField, order Order) {
	if field == "" {
		field = SortByCreated
	}
	if order == "" {
		order = OrderDesc
	}

	sort.SliceStable(expenses, func(i, j int) bool {
		c := compare(expenses[i], expenses[j], field)
		if c == 0 {
			return expenses[i].ID < expenses[j].ID
		}
		if order == OrderDesc {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b *entity.Expense, field SortField) int {
	switch field {
	case SortByDate:
		return compareTimes(a.ExpenseDate.Unix(), b.ExpenseDate.Unix())
	case SortByAmount:
		return a.Amount.Cmp(b.Amount)
	case SortByCategory:
		return strings.Compare(string(a.Category), string(b.Category))
	case SortByEmployee:
		return strings.Compare(strings.ToLower(a.EmployeeName), strings.ToLower(b.EmployeeName))
	default:
		return compareTimes(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	}
}

func compareTimes(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// QueueItem is a pending approval together with the expense it belongs to
type QueueItem struct {
	Approval *entity.Approval `json:"approval"`
	Expense  *entity.Expense  `json:"expense"`
}

// ApplyQueue filters and sorts an approvals queue. The default is oldest request first.
func ApplyQueue(items []*QueueItem, q Query) []*QueueItem {
	out := make([]*QueueItem, 0, len(items))
	for _, item := range items {
		if q.Matches(item.Expense) {
			out = append(out, item)
		}
	}

	field, order := q.SortBy, q.Order
	if field == "" {
		field = SortByCreated
	}
	if order == "" {
		order = OrderAsc
	}

	sort.SliceStable(out, func(i, j int) bool {
		var c int
		if field == SortByCreated {
			c = compareTimes(out[i].Approval.CreatedAt.UnixNano(), out[j].Approval.CreatedAt.UnixNano())
		} else {
			c = compare(out[i].Expense, out[j].Expense, field)
		}
		if c == 0 {
			return out[i].Approval.ID < out[j].Approval.ID
		}
		if order == OrderDesc {
			return c > 0
		}
		return c < 0
	})
	return out
}
