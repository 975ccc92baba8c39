package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/listing"
)

// maxBulkDecisions bounds one bulk request
const maxBulkDecisions = 100

// DecisionBody is the body of POST /approvals/:id/decision
type DecisionBody struct {
	Decision entity.Decision `json:"decision"`
	Comment  string          `json:"comment"`
}

// BulkDecisionRequest is the body of POST /approvals/bulk
type BulkDecisionRequest struct {
	Decisions []service.DecisionRequest `json:"decisions"`
}

// BulkItemResponse reports the outcome of one bulk decision
type BulkItemResponse struct {
	ApprovalID string                  `json:"approval_id"`
	Success    bool                    `json:"success"`
	Status     int                     `json:"status"`
	Error      string                  `json:"error,omitempty"`
	Fields     map[string]string       `json:"fields,omitempty"`
	Result     *service.DecisionResult `json:"result,omitempty"`
}

// BulkDecisionResponse summarizes a bulk request
type BulkDecisionResponse struct {
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []BulkItemResponse `json:"results"`
}

// PendingApprovals handles GET /api/v1/approvals/pending
func (h *Handlers) PendingApprovals(c *gin.Context) {
	items, err := h.services.Expenses.PendingApprovals(c.Request.Context(), mustActor(c), listQuery(c))
	if err != nil {
		h.respondError(c, "List pending approvals", err)
		return
	}
	if items == nil {
		items = []*listing.QueueItem{}
	}
	h.respondOK(c, http.StatusOK, items)
}

// Decide handles POST /api/v1/approvals/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	var body DecisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.services.Expenses.ApplyDecision(c.Request.Context(), mustActor(c), service.DecisionRequest{
		ApprovalID: c.Param("id"),
		Decision:   body.Decision,
		Comment:    body.Comment,
	})
	if err != nil {
		h.respondError(c, "Decide approval", err)
		return
	}
	h.respondOK(c, http.StatusOK, result)
}

// BulkDecide handles POST /api/v1/approvals/bulk. Items succeed or fail
// independently; the response is 200 whenever the request itself was valid.
func (h *Handlers) BulkDecide(c *gin.Context) {
	var body BulkDecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBadRequest(c, "invalid request body")
		return
	}
	if len(body.Decisions) == 0 {
		verr := entity.NewValidationError()
		verr.Add("decisions", "must not be empty")
		h.respondError(c, "Bulk decide", verr)
		return
	}
	if len(body.Decisions) > maxBulkDecisions {
		verr := entity.NewValidationError()
		verr.Add("decisions", "too many items in one request")
		h.respondError(c, "Bulk decide", verr)
		return
	}

	results := h.services.Expenses.BulkDecide(c.Request.Context(), mustActor(c), body.Decisions)

	resp := BulkDecisionResponse{Results: make([]BulkItemResponse, 0, len(results))}
	for _, r := range results {
		item := BulkItemResponse{ApprovalID: r.ApprovalID, Status: http.StatusOK, Result: r.Result}
		if r.Err != nil {
			ae := classify(r.Err)
			if ae.Status >= http.StatusInternalServerError {
				h.logger.Error("Bulk decision failed", "approval_id", r.ApprovalID, "error", r.Err)
			}
			item.Status = ae.Status
			item.Error = ae.Message
			item.Fields = ae.Fields
			resp.Failed++
		} else {
			item.Success = true
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, item)
	}

	h.respondOK(c, http.StatusOK, resp)
}
