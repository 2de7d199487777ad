package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gosuda/backoffice/internal/domain"
)

// ErrNoEntityID is returned when a create succeeds but the backend does not
// echo the stored entity's id.
var ErrNoEntityID = errors.New("upstream: response carries no entity id")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string // server-supplied, may be empty
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream: %d %s", e.Status, http.StatusText(e.Status))
}

func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	default:
		return false
	}
}

// ServerMessage returns the human-readable message carried by err, if the
// backend supplied one.
func ServerMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

// errorBody covers the error shapes the backend is known to produce:
// {"message"}, {"error": "..."}, {"error": {"message", "code"}}, {"detail"}
// and {"errors": [{"message"}]}.
type errorBody struct {
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Code    string          `json:"code"`
	Error   json.RawMessage `json:"error"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	apiErr.Code = eb.Code

	switch {
	case strings.TrimSpace(eb.Message) != "":
		apiErr.Message = strings.TrimSpace(eb.Message)
	case len(eb.Error) > 0:
		var s string
		if json.Unmarshal(eb.Error, &s) == nil {
			apiErr.Message = strings.TrimSpace(s)
			break
		}
		var nested struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(eb.Error, &nested) == nil {
			apiErr.Message = strings.TrimSpace(nested.Message)
			if nested.Code != "" {
				apiErr.Code = nested.Code
			}
		}
	case strings.TrimSpace(eb.Detail) != "":
		apiErr.Message = strings.TrimSpace(eb.Detail)
	case len(eb.Errors) > 0:
		apiErr.Message = strings.TrimSpace(eb.Errors[0].Message)
	}
	return apiErr
}
