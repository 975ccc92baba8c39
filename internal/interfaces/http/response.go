package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// Response represents a standard JSON response
type Response struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

const genericFailure = "something went wrong, please try again"

// apiError is the client-facing rendering of an error
type apiError struct {
	Status  int
	Message string
	Fields  map[string]string
}

// classify maps domain errors onto HTTP statuses. Unknown errors become 500
// and carry no detail.
func classify(err error) apiError {
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr):
		return apiError{Status: http.StatusUnprocessableEntity, Message: "validation failed", Fields: verr.Fields}
	case errors.Is(err, entity.ErrValidation):
		return apiError{Status: http.StatusUnprocessableEntity, Message: "validation failed"}
	case errors.Is(err, entity.ErrNoApproverFound):
		return apiError{Status: http.StatusUnprocessableEntity, Message: "no approver is available for this expense"}
	case errors.Is(err, entity.ErrUnauthenticated):
		return apiError{Status: http.StatusUnauthorized, Message: "authentication required"}
	case errors.Is(err, entity.ErrForbidden):
		return apiError{Status: http.StatusForbidden, Message: "forbidden"}
	case errors.Is(err, entity.ErrNotFound):
		return apiError{Status: http.StatusNotFound, Message: "not found"}
	case errors.Is(err, entity.ErrConflict):
		return apiError{Status: http.StatusConflict, Message: "the record was changed by someone else, reload and retry"}
	case errors.Is(err, entity.ErrInvalidState):
		return apiError{Status: http.StatusConflict, Message: "the record is not in a state that allows this action"}
	default:
		return apiError{Status: http.StatusInternalServerError, Message: genericFailure}
	}
}

func (h *Handlers) respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// respondError renders err and logs it. Server-side failures are logged with their cause.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	ae := classify(err)
	if ae.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", "error", err, "path", c.Request.URL.Path)
	} else {
		h.logger.Info(op+" rejected", "status", ae.Status, "error", err.Error())
	}
	c.AbortWithStatusJSON(ae.Status, Response{Success: false, Error: ae.Message, Fields: ae.Fields})
}

func (h *Handlers) respondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Success: false, Error: message})
}
