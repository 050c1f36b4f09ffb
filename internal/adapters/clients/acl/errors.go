package acl

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// Fetch failure stages.
const (
	StageRequest = "request"
	StageStatus  = "status"
	StageDecode  = "decode"
)

// maxErrorBody caps how much of an error response is read for context.
const maxErrorBody = 4 << 10

// ErrorResponse is the error envelope the hitokoto API uses for rejected
// requests, e.g. {"status": 400, "message": "..."}.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// ParseErrorResponse attempts to parse an error response body.
// Returns nil if the body is empty or carries no message.
func ParseErrorResponse(body io.Reader) *ErrorResponse {
	if body == nil {
		return nil
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&errResp); err != nil {
		return nil
	}

	if errResp.Message == "" {
		return nil
	}

	return &errResp
}

// StatusError describes a non-200 upstream response.
type StatusError struct {
	Service string
	Code    int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.Code, e.Message)
	}

	return fmt.Sprintf("%s returned HTTP %d", e.Service, e.Code)
}

// MapHTTPError converts a failed exchange into a fetch failure. resp is nil
// when the transport failed; otherwise its body is consumed for context.
func MapHTTPError(resp *http.Response, clientErr error, serviceName string) error {
	if clientErr != nil {
		return domain.NewFetchError(StageRequest, clientErr)
	}

	if resp == nil {
		return domain.NewFetchError(StageRequest, fmt.Errorf("%s: no response received", serviceName))
	}

	statusErr := &StatusError{Service: serviceName, Code: resp.StatusCode}
	if errResp := ParseErrorResponse(resp.Body); errResp != nil {
		statusErr.Message = errResp.Message
	}

	return domain.NewFetchError(StageStatus, statusErr)
}
