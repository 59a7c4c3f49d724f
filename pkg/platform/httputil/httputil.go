package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "trash4cash/pkg/domain-errors"
)

// ErrorBody is the JSON shape of every console error response.
type ErrorBody struct {
	Error       dErrors.Code `json:"error"`
	Description string       `json:"error_description,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status is already sent; an encoding failure cannot be reported
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError writes err as an ErrorBody. Errors without a domain code are
// reported as internal_error with no description, so upstream details never
// reach the browser.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorBody{Error: dErrors.CodeInternal})
		return
	}
	WriteJSON(w, StatusFor(domainErr.Code), ErrorBody{
		Error:       domainErr.Code,
		Description: domainErr.Message,
	})
}

var codeStatus = map[dErrors.Code]int{
	dErrors.CodeNotFound:       http.StatusNotFound,
	dErrors.CodeBadRequest:     http.StatusBadRequest,
	dErrors.CodeValidation:     http.StatusBadRequest,
	dErrors.CodeTooLarge:       http.StatusRequestEntityTooLarge,
	dErrors.CodeConflict:       http.StatusConflict,
	dErrors.CodeInvalidState:   http.StatusConflict,
	dErrors.CodeUnauthorized:   http.StatusUnauthorized,
	dErrors.CodeFetchFailed:    http.StatusBadGateway,
	dErrors.CodeMutationFailed: http.StatusBadGateway,
	dErrors.CodeUnavailable:    http.StatusServiceUnavailable,
	dErrors.CodeTimeout:        http.StatusGatewayTimeout,
}

// StatusFor maps a domain code to its HTTP status. Fetch and mutation
// failures are upstream problems from the console's side and map to 502.
func StatusFor(code dErrors.Code) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
