package export

import (
	"fmt"
	"sort"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetName    = "Expenses"
	headerRow    = 1
	dataRowStart = 2
)

var columns = []struct {
	title string
	width float64
}{
	{"Date", 12},
	{"Employee", 24},
	{"Category", 16},
	{"Description", 40},
	{"Amount", 14},
	{"Currency", 10},
	{"Status", 12},
	{"Submitted", 20},
	{"Expense ID", 38},
}

const (
	colAmount   = 5
	colCurrency = 6
)

// ExcelExporter implements port.ExpenseExporter producing an xlsx workbook
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new spreadsheet exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

func (x *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (x *ExcelExporter) FileExtension() string { return "xlsx" }

// Export writes one row per expense followed by a total per currency
func (x *ExcelExporter) Export(company *entity.Company, expenses []*entity.Expense) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := x.writeHeader(f); err != nil {
		return nil, err
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("failed to create amount style: %w", err)
	}

	totals := make(map[entity.Currency]decimal.Decimal)
	row := dataRowStart
	for _, e := range expenses {
		values := []interface{}{
			e.ExpenseDate.Format(entity.DateLayout),
			e.EmployeeName,
			string(e.Category),
			e.Description,
			e.Amount.InexactFloat64(),
			string(e.Currency),
			string(e.Status),
			e.CreatedAt.UTC().Format("2006-01-02 15:04"),
			e.ID,
		}
		if err := x.writeRow(f, row, values); err != nil {
			return nil, err
		}
		totals[e.Currency] = totals[e.Currency].Add(e.Amount)
		row++
	}

	lastDataRow := row - 1
	if len(expenses) > 0 {
		if err := x.styleAmounts(f, amountStyle, dataRowStart, lastDataRow); err != nil {
			return nil, err
		}
	}

	// Totals are separated from the data by one blank row
	row++
	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, string(c))
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		amountCell, _ := excelize.CoordinatesToCellName(colAmount, row)
		labelCell, _ := excelize.CoordinatesToCellName(colAmount-1, row)
		currencyCell, _ := excelize.CoordinatesToCellName(colCurrency, row)
		if err := f.SetCellValue(sheetName, labelCell, "Total"); err != nil {
			return nil, fmt.Errorf("failed to set total label: %w", err)
		}
		if err := f.SetCellValue(sheetName, amountCell, totals[entity.Currency(c)].InexactFloat64()); err != nil {
			return nil, fmt.Errorf("failed to set total amount: %w", err)
		}
		if err := f.SetCellStyle(sheetName, amountCell, amountCell, amountStyle); err != nil {
			return nil, fmt.Errorf("failed to style total: %w", err)
		}
		if err := f.SetCellValue(sheetName, currencyCell, c); err != nil {
			return nil, fmt.Errorf("failed to set total currency: %w", err)
		}
		row++
	}

	if company != nil {
		if err := f.SetDocProps(&excelize.DocProperties{
			Title:   company.Name + " expenses",
			Creator: company.Name,
		}); err != nil {
			x.logger.Warn("Failed to set workbook properties", zap.Error(err))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Debug("Expense workbook generated",
		zap.Int("rows", len(expenses)),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (x *ExcelExporter) writeHeader(f *excelize.File) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	titles := make([]interface{}, 0, len(columns))
	for i, c := range columns {
		titles = append(titles, c.title)
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, name, name, c.width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := x.writeRow(f, headerRow, titles); err != nil {
		return err
	}

	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(columns), headerRow)
	if err := f.SetCellStyle(sheetName, first, last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (x *ExcelExporter) writeRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func (x *ExcelExporter) styleAmounts(f *excelize.File, style, fromRow, toRow int) error {
	from, _ := excelize.CoordinatesToCellName(colAmount, fromRow)
	to, _ := excelize.CoordinatesToCellName(colAmount, toRow)
	if err := f.SetCellStyle(sheetName, from, to, style); err != nil {
		return fmt.Errorf("failed to style amounts: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.ExpenseExporter = (*ExcelExporter)(nil)
