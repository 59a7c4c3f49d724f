package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	dErrors "trash4cash/pkg/domain-errors"
)

// DecodeJSON reads a single JSON object from the request body into T. On
// failure it writes the error response itself and returns false; the caller
// only returns.
//
// Forms are not normalized or validated here. The services that receive them
// call PrepareRequest so that the same rules apply to every entry point.
func DecodeJSON[T any](ctx context.Context, w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (*T, bool) {
	var req T
	if err := decodeBody(r.Body, &req); err != nil {
		logger.WarnContext(ctx, "rejected request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}

// decodeBody turns the ways a body can be unusable into domain errors with a
// message the console can show next to the form.
func decodeBody(body io.Reader, dst any) error {
	if body == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	dec := json.NewDecoder(body)
	err := dec.Decode(dst)

	var (
		tooLarge  *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case err == nil:
	case errors.As(err, &tooLarge):
		return dErrors.Wrap(err, dErrors.CodeTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, io.EOF):
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	case errors.As(err, &syntaxErr):
		return dErrors.Wrap(err, dErrors.CodeBadRequest,
			fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return dErrors.Wrap(err, dErrors.CodeValidation,
			fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind()))
	default:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}

	if dec.More() {
		return dErrors.New(dErrors.CodeBadRequest, "request body must hold a single JSON object")
	}
	return nil
}

// Validatable is implemented by forms that check their own fields.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by forms that trim or default fields before
// validation.
type Normalizable interface {
	Normalize()
}

// PrepareRequest normalizes then validates form. A plain error from Validate
// becomes a validation_failed domain error; a domain error keeps its code.
func PrepareRequest(form any) error {
	if n, ok := form.(Normalizable); ok {
		n.Normalize()
	}
	v, ok := form.(Validatable)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil {
		return nil
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
}
