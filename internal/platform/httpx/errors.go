// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gymdesk/gymdesk/internal/shared"
)

// Sentinel errors re-exported for handlers.
var (
	ErrNotFound     = shared.ErrNotFound
	ErrDuplicate    = shared.ErrDuplicate
	ErrValidation   = shared.ErrValidation
	ErrForbidden    = shared.ErrForbidden
	ErrUnauthorized = shared.ErrUnauthorized
)

type problemMapping struct {
	target error
	status int
	title  string
	kind   string
}

var problemMappings = []problemMapping{
	{shared.ErrValidation, http.StatusBadRequest, "Validation Failed", "validation_error"},
	{shared.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized", "unauthorized"},
	{shared.ErrInvalidCredentials, http.StatusUnauthorized, "Unauthorized", "invalid_credentials"},
	{shared.ErrForbidden, http.StatusForbidden, "Forbidden", "forbidden"},
	{shared.ErrNotFound, http.StatusNotFound, "Not Found", "not_found"},
	{shared.ErrDuplicate, http.StatusConflict, "Duplicate", "duplicate"},
	{shared.ErrIdempotencyConflict, http.StatusConflict, "Already Processed", "idempotency_conflict"},
	{shared.ErrInsufficientStock, http.StatusConflict, "Insufficient Stock", "insufficient_stock"},
	{shared.ErrNegativeStock, http.StatusUnprocessableEntity, "Negative Stock", "negative_stock"},
	{shared.ErrInstallmentMismatch, http.StatusUnprocessableEntity, "Installment Mismatch", "installment_mismatch"},
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	for _, m := range problemMappings {
		if errors.Is(err, m.target) {
			writeProblem(w, ProblemDetail{
				Type:   m.kind,
				Title:  m.title,
				Status: m.status,
				Detail: err.Error(),
			})
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// StatusFor returns the HTTP status RespondError would use for err.
func StatusFor(err error) int {
	for _, m := range problemMappings {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// ValidationError converts validator output into ErrValidation.
func ValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: invalid fields: %s", shared.ErrValidation, strings.Join(fields, ", "))
}
