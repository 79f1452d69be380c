package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNoCredentials = errors.New("no upstream credentials configured")
	ErrNoRefresh     = errors.New("no refresh token")
)

// APIError is a non-2xx answer of the REST API.
type APIError struct {
	Status      int               `json:"status"`
	Code        string            `json:"code,omitempty"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}

func (e *APIError) HTTPStatus() int {
	return e.Status
}

// tokenInvalid reports whether the API rejected the access token.
func (e *APIError) tokenInvalid() bool {
	return e.Status == http.StatusUnauthorized || e.Code == "token_not_valid"
}

// IsUnauthorized reports whether `err` is an authentication failure of the API.
func IsUnauthorized(err error) bool {
	apiErr, ok := errors.Cause(err).(*APIError)
	return ok && apiErr.tokenInvalid()
}

// StatusCode returns the API status carried by `err`, or 0.
func StatusCode(err error) int {
	if apiErr, ok := errors.Cause(err).(*APIError); ok {
		return apiErr.Status
	}
	return 0
}

// newAPIError reads the error payloads of the REST API: a message under "detail", "message" or "error",
// an optional "code" (e.g. "token_not_valid") and per-field lists of messages, joined with spaces.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = http.StatusText(status)
		return apiErr
	}

	apiErr.Code, _ = payload["code"].(string)
	for _, key := range []string{"detail", "message", "error"} {
		if msg, ok := payload[key].(string); ok && msg != "" {
			apiErr.Message = msg
			break
		}
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch key {
		case "detail", "message", "error", "code", "messages":
			continue
		}
		var msgs []string
		switch val := payload[key].(type) {
		case []interface{}:
			for _, m := range val {
				if s, ok := m.(string); ok {
					msgs = append(msgs, s)
				}
			}
		case string:
			msgs = append(msgs, val)
		}
		if len(msgs) == 0 {
			continue
		}
		if apiErr.FieldErrors == nil {
			apiErr.FieldErrors = make(map[string]string)
		}
		apiErr.FieldErrors[key] = strings.Join(msgs, " ")
	}

	if apiErr.Message == "" {
		if msg, ok := apiErr.FieldErrors["non_field_errors"]; ok {
			apiErr.Message = msg
		} else {
			apiErr.Message = http.StatusText(status)
		}
	}
	return apiErr
}
