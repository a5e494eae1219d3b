package ragapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GenericFailureMessage is shown when neither the service nor the transport
// produced a usable message.
const GenericFailureMessage = "Something went wrong"

// APIError is a non-success response from the backend. Detail carries the
// service-provided human-readable message when the error payload had one.
type APIError struct {
	StatusCode int
	Detail     string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ragapi: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("ragapi: status %d", e.StatusCode)
}

// errorPayload is the FastAPI error envelope.
type errorPayload struct {
	Detail string `json:"detail"`
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Detail = payload.Detail
	}
	return apiErr
}

// UserMessage extracts the message to surface for a failed request:
// the service detail if present, else the transport error text, else a
// generic fallback.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return GenericFailureMessage
}
