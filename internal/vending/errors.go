package vending

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/blue-coffee-vending/internal/common"
)

// Backend error codes carried in structured error details.
const (
	CodeNotEnoughMoney     = "NOT_ENOUGH_MONEY"
	CodeInsufficientChange = "INSUFFICIENT_CHANGE"
	CodeInvalidSession     = "INVALID_SESSION"
)

// APIError is a non-2xx response from the vending backend.
type APIError struct {
	Fields     map[string]any
	Op         string
	Message    string
	Code       string
	StatusCode int
}

func (e *APIError) Error() string {
	if d := e.Detail(); d != "" {
		return fmt.Sprintf("%s: backend rejected request (status %d): %s", e.Op, e.StatusCode, d)
	}
	return fmt.Sprintf("%s: backend rejected request (status %d)", e.Op, e.StatusCode)
}

// Detail returns the backend's own explanation, preferring the free-text message
// over the machine-readable code.
func (e *APIError) Detail() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// Temporary reports whether retrying the same request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// TransportError is a failure to exchange a request with the backend at all.
type TransportError struct {
	Err error
	Op  string
}

// Error returns the underlying transport text so it can be shown as-is.
func (e *TransportError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes both the cause and common.ErrBackendUnavailable.
func (e *TransportError) Unwrap() []error {
	return []error{e.Err, common.ErrBackendUnavailable}
}

// parseAPIError decodes the detail of an error body. The backend sends either
// {"detail": "text"}, {"detail": {"error": "CODE", ...}} or a validation list
// {"detail": [{"msg": "..."}]}.
func parseAPIError(op string, status int, body []byte) *APIError {
	apiErr := &APIError{Op: op, StatusCode: status}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	raw := bytes.TrimSpace(envelope.Detail)
	switch raw[0] {
	case 'n':
		// null detail, fall back to the status text below
	case '"':
		_ = json.Unmarshal(raw, &apiErr.Message)
	case '{':
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err == nil {
			if code, ok := fields["error"].(string); ok {
				apiErr.Code = code
				delete(fields, "error")
			}
			if msg, ok := fields["message"].(string); ok {
				apiErr.Message = msg
				delete(fields, "message")
			}
			if len(fields) > 0 {
				apiErr.Fields = fields
			}
		}
	case '[':
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			apiErr.Message = strings.Join(msgs, "; ")
		}
	default:
		apiErr.Message = string(raw)
	}

	if apiErr.Message == "" && apiErr.Code == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
