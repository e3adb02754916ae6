// Package server provides the HTTP REST API for company insights.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/company-insights/internal/fetch"
	"github.com/jonathan/company-insights/internal/llm"
	"github.com/jonathan/company-insights/internal/schemas"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// newValidationError converts a decode or validator error into an *ErrValidation.
func newValidationError(err error) *ErrValidation {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
		}
		return &ErrValidation{Field: fieldErrs[0].Field(), Message: strings.Join(fields, "; ")}
	}
	return &ErrValidation{Message: err.Error()}
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		scrapeErr     *fetch.ScrapeError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &scrapeErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorDetail returns the client-facing message for an error.
func ErrorDetail(err error) string {
	var (
		validationErr *ErrValidation
		scrapeErr     *fetch.ScrapeError
		formatErr     *llm.ResponseFormatError
		schemaErr     *schemas.ValidationError
	)
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.As(err, &scrapeErr):
		reason := scrapeErr.Message
		if scrapeErr.Cause != nil {
			reason = fmt.Sprintf("%s: %v", reason, scrapeErr.Cause)
		}
		return "Failed to scrape URL: " + reason
	case errors.As(err, &formatErr):
		return "Failed to parse LLM response"
	case errors.As(err, &schemaErr):
		return "LLM response did not match the expected schema"
	default:
		return "Internal server error"
	}
}
