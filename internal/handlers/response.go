package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avocetlabs/fledge-backend/internal/platform/apierr"
	"github.com/avocetlabs/fledge-backend/internal/platform/ctxutil"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	requestID := ""
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		requestID = td.RequestID
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message:   msg,
			Code:      code,
			RequestID: requestID,
		},
	})
}

// RespondAPIError maps a service error onto the envelope, honoring the status
// and code carried by typed errors.
func RespondAPIError(c *gin.Context, err error) {
	if typed, ok := apierr.From(err); ok {
		RespondError(c, typed.Status, typed.Code, typed)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal_error", err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
