package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to clients.
const (
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidStatus        = "INVALID_STATUS"
	CodeInvalidVoteDirection = "INVALID_VOTE_DIRECTION"
	CodeEmptyInput           = "EMPTY_INPUT"
	CodeDuplicateName        = "DUPLICATE_NAME"
	CodeReferentialIntegrity = "REFERENTIAL_INTEGRITY"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeInternal             = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewAuthenticationFailed signals missing, invalid or expired credentials.
func NewAuthenticationFailed(message string) error {
	return NewDomainError(CodeAuthenticationFailed, message, http.StatusUnauthorized, nil)
}

// NewUnauthorized signals an authenticated caller lacking role or ownership.
func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusForbidden, nil)
}

func NewInvalidStatus(status string) error {
	return NewDomainError(CodeInvalidStatus, fmt.Sprintf("invalid status %q", status), http.StatusUnprocessableEntity,
		map[string]any{"status": status})
}

func NewInvalidVoteDirection(direction string) error {
	return NewDomainError(CodeInvalidVoteDirection, fmt.Sprintf("invalid vote direction %q", direction), http.StatusUnprocessableEntity,
		map[string]any{"direction": direction})
}

func NewEmptyInput(field string) error {
	return NewDomainError(CodeEmptyInput, fmt.Sprintf("%s cannot be empty", field), http.StatusBadRequest,
		map[string]any{"field": field})
}

func NewDuplicateName(resource, name string) error {
	return NewDomainError(CodeDuplicateName, fmt.Sprintf("%s %q already exists", resource, name), http.StatusConflict,
		map[string]any{"name": name})
}

func NewReferentialIntegrity(message string, details map[string]any) error {
	return NewDomainError(CodeReferentialIntegrity, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// CodeOf returns the client facing code of err, or CodeInternal for
// unrecognised errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}
