package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// SubmitExpenseRequest holds the fields of POST /expenses as submitted
type SubmitExpenseRequest struct {
	Amount      string `form:"amount"`
	Currency    string `form:"currency"`
	Category    string `form:"category"`
	ExpenseDate string `form:"expense_date"`
	Description string `form:"description"`
}

// submitExpenseJSON accepts the amount as a JSON number or string
type submitExpenseJSON struct {
	Amount      json.RawMessage `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	ExpenseDate string          `json:"expense_date"`
	Description string          `json:"description"`
}

// OverrideRequest is the body of POST /expenses/:id/override
type OverrideRequest struct {
	Status  entity.ExpenseStatus `json:"status"`
	Comment string               `json:"comment"`
}

// ReceiptResponse carries a resolved receipt URL
type ReceiptResponse struct {
	URL string `json:"url"`
}

// SubmitExpense handles POST /api/v1/expenses. Accepts JSON or a multipart
// form with an optional "receipt" file.
func (h *Handlers) SubmitExpense(c *gin.Context) {
	var body SubmitExpenseRequest
	var receipt *service.ReceiptUpload

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&body); err != nil {
			h.respondBadRequest(c, "invalid form")
			return
		}
		upload, err := h.readReceipt(c)
		if err != nil {
			h.respondBadRequest(c, "invalid receipt upload")
			return
		}
		receipt = upload
	} else {
		var raw submitExpenseJSON
		if err := c.ShouldBindJSON(&raw); err != nil {
			h.respondBadRequest(c, "invalid request body")
			return
		}
		body = SubmitExpenseRequest{
			Amount:      strings.Trim(string(raw.Amount), `"`),
			Currency:    raw.Currency,
			Category:    raw.Category,
			ExpenseDate: raw.ExpenseDate,
			Description: raw.Description,
		}
	}

	req, verr := body.toSubmit()
	if verr != nil {
		h.respondError(c, "Submit expense", verr)
		return
	}
	req.Receipt = receipt

	expense, err := h.services.Expenses.Submit(c.Request.Context(), mustActor(c), req)
	if err != nil {
		h.respondError(c, "Submit expense", err)
		return
	}
	h.respondOK(c, http.StatusCreated, expense)
}

// readReceipt returns nil when the form carries no receipt. Reads stop one
// byte past the size limit so the service can reject oversize files.
func (h *Handlers) readReceipt(c *gin.Context) (*service.ReceiptUpload, error) {
	fh, err := c.FormFile("receipt")
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	limit := h.config.MaxReceiptSize
	if limit <= 0 {
		limit = service.DefaultMaxReceiptSize
	}
	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	return &service.ReceiptUpload{Filename: fh.Filename, Content: content}, nil
}

// toSubmit parses the textual fields. Only parse failures are reported here;
// the service validates the values themselves.
func (r SubmitExpenseRequest) toSubmit() (service.SubmitRequest, error) {
	verr := entity.NewValidationError()
	req := service.SubmitRequest{
		Currency:    entity.Currency(strings.ToUpper(strings.TrimSpace(r.Currency))),
		Category:    entity.Category(strings.TrimSpace(r.Category)),
		Description: strings.TrimSpace(r.Description),
	}

	if strings.TrimSpace(r.Amount) == "" {
		verr.Add("amount", "is required")
	} else if amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount)); err != nil {
		verr.Add("amount", "must be a decimal number")
	} else {
		req.Amount = amount
	}

	if strings.TrimSpace(r.ExpenseDate) != "" {
		date, err := time.Parse(entity.DateLayout, strings.TrimSpace(r.ExpenseDate))
		if err != nil {
			verr.Add("expense_date", "must be formatted as YYYY-MM-DD")
		} else {
			req.ExpenseDate = date
		}
	}

	return req, verr.OrNil()
}

// ListExpenses handles GET /api/v1/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	expenses, err := h.services.Expenses.ListForScope(c.Request.Context(), mustActor(c), scopeQuery(c), listQuery(c))
	if err != nil {
		h.respondError(c, "List expenses", err)
		return
	}
	if expenses == nil {
		expenses = []*entity.Expense{}
	}
	h.respondOK(c, http.StatusOK, expenses)
}

// ExportExpenses handles GET /api/v1/expenses/export
func (h *Handlers) ExportExpenses(c *gin.Context) {
	result, err := h.services.Expenses.Export(c.Request.Context(), mustActor(c), scopeQuery(c), listQuery(c))
	if err != nil {
		h.respondError(c, "Export expenses", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// GetExpense handles GET /api/v1/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	detail, err := h.services.Expenses.GetByID(c.Request.Context(), mustActor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "Get expense", err)
		return
	}
	h.respondOK(c, http.StatusOK, detail)
}

// GetReceiptURL handles GET /api/v1/expenses/:id/receipt
func (h *Handlers) GetReceiptURL(c *gin.Context) {
	url, err := h.services.Expenses.ReceiptURL(c.Request.Context(), mustActor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "Resolve receipt", err)
		return
	}
	h.respondOK(c, http.StatusOK, ReceiptResponse{URL: url})
}

// OverrideExpense handles POST /api/v1/expenses/:id/override
func (h *Handlers) OverrideExpense(c *gin.Context) {
	var body OverrideRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBadRequest(c, "invalid request body")
		return
	}

	expense, err := h.services.Expenses.Override(c.Request.Context(), mustActor(c), service.OverrideRequest{
		ExpenseID: c.Param("id"),
		Status:    body.Status,
		Comment:   body.Comment,
	})
	if err != nil {
		h.respondError(c, "Override expense", err)
		return
	}
	h.respondOK(c, http.StatusOK, expense)
}
