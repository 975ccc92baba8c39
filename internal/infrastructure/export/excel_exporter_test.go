package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExcelExporter_Export(t *testing.T) {
	x := NewExcelExporter(zap.NewNop())
	company := &entity.Company{ID: "c1", Name: "Acme", Currency: entity.CurrencyUSD}
	date := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	expenses := []*entity.Expense{
		{ID: "e1", EmployeeName: "Amy", Category: entity.CategoryTravel, Description: "Flight", Amount: decimal.RequireFromString("420.10"), Currency: entity.CurrencyUSD, Status: entity.ExpenseStatusApproved, ExpenseDate: date, CreatedAt: date},
		{ID: "e2", EmployeeName: "Bob", Category: entity.CategoryMeals, Amount: decimal.RequireFromString("79.90"), Currency: entity.CurrencyUSD, Status: entity.ExpenseStatusPending, ExpenseDate: date, CreatedAt: date},
		{ID: "e3", EmployeeName: "Cleo", Category: entity.CategorySoftware, Amount: decimal.RequireFromString("15"), Currency: entity.CurrencyEUR, Status: entity.ExpenseStatusRejected, ExpenseDate: date, CreatedAt: date},
	}

	data, err := x.Export(company, expenses)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)

	// header + 3 data rows + blank + 2 currency totals
	require.Len(t, rows, 7)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "Amy", rows[1][1])
	assert.Equal(t, "2026-04-02", rows[1][0])
	assert.Equal(t, "e3", rows[3][8])

	assert.Equal(t, "Total", rows[5][3])
	assert.Equal(t, "EUR", rows[5][5])
	assert.Equal(t, "USD", rows[6][5])

	usdTotal, err := f.GetCellValue(sheetName, "E7", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "500", usdTotal)
}

func TestExcelExporter_Empty(t *testing.T) {
	x := NewExcelExporter(zap.NewNop())
	data, err := x.Export(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "xlsx", x.FileExtension())
}
