package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseStatus is the derived lifecycle state of an expense
type ExpenseStatus string

const (
	ExpenseStatusPending  ExpenseStatus = "pending"
	ExpenseStatusApproved ExpenseStatus = "approved"
	ExpenseStatusRejected ExpenseStatus = "rejected"
)

// IsValid reports whether s is a known expense status
func (s ExpenseStatus) IsValid() bool {
	switch s {
	case ExpenseStatusPending, ExpenseStatusApproved, ExpenseStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further decisions are accepted
func (s ExpenseStatus) IsTerminal() bool {
	return s == ExpenseStatusApproved || s == ExpenseStatusRejected
}

// Category classifies an expense
type Category string

const (
	CategoryTravel         Category = "Travel"
	CategoryMeals          Category = "Meals"
	CategoryAccommodation  Category = "Accommodation"
	CategoryOfficeSupplies Category = "Office Supplies"
	CategorySoftware       Category = "Software"
	CategoryTraining       Category = "Training"
	CategoryOther          Category = "Other"
)

// Categories lists the allowed categories in display order
func Categories() []Category {
	return []Category{
		CategoryTravel,
		CategoryMeals,
		CategoryAccommodation,
		CategoryOfficeSupplies,
		CategorySoftware,
		CategoryTraining,
		CategoryOther,
	}
}

// IsValid reports whether c is an allowed category
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Currency is an ISO 4217 code
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyAUD Currency = "AUD"
	CurrencyCAD Currency = "CAD"
)

// IsValid reports whether c is an accepted currency
func (c Currency) IsValid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyJPY, CurrencyAUD, CurrencyCAD:
		return true
	}
	return false
}

// DateLayout is the calendar-date format used for expense dates
const DateLayout = "2006-01-02"

// Expense is a single claim submitted by an employee.
// Status mirrors the outcome of its approvals unless an admin overrode it.
type Expense struct {
	ID           string          `json:"id"`
	CompanyID    string          `json:"company_id"`
	EmployeeID   string          `json:"employee_id"`
	EmployeeName string          `json:"employee_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     Currency        `json:"currency"`
	Category     Category        `json:"category"`
	Description  string          `json:"description,omitempty"`
	ExpenseDate  time.Time       `json:"expense_date"`
	ReceiptPath  string          `json:"receipt_url,omitempty"`
	Status       ExpenseStatus   `json:"status"`
	OverriddenBy *string         `json:"overridden_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HasReceipt reports whether a receipt object is referenced
func (e *Expense) HasReceipt() bool {
	return e.ReceiptPath != ""
}
