package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError_PassesThroughDomainErrors(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewInvalidStatus("Pending"))

	de := ToDomainError(err)
	assert.Equal(t, CodeInvalidStatus, de.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, de.HTTPStatus)
	assert.Equal(t, "Pending", de.Details["status"])
}

func TestToDomainError_NoRowsBecomesNotFound(t *testing.T) {
	de := ToDomainError(pgx.ErrNoRows)
	assert.Equal(t, CodeNotFound, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
}

func TestToDomainError_UnknownBecomesInternal(t *testing.T) {
	cause := errors.New("boom")
	de := ToDomainError(cause)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.ErrorIs(t, de, cause)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, CodeUnauthorized, CodeOf(NewUnauthorized("nope")))
	assert.Equal(t, CodeAuthenticationFailed, CodeOf(NewAuthenticationFailed("bad token")))
	assert.Equal(t, CodeEmptyInput, CodeOf(NewEmptyInput("subject")))
	assert.Equal(t, CodeDuplicateName, CodeOf(NewDuplicateName("category", "Billing Query")))
	assert.Equal(t, CodeReferentialIntegrity, CodeOf(NewReferentialIntegrity("in use", nil)))
	assert.Equal(t, CodeInvalidVoteDirection, CodeOf(NewInvalidVoteDirection("sideways")))
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, ToDomainError(NewAuthenticationFailed("x")).HTTPStatus)
	assert.Equal(t, http.StatusForbidden, ToDomainError(NewUnauthorized("x")).HTTPStatus)
	assert.Equal(t, http.StatusConflict, ToDomainError(NewDuplicateName("user", "bob")).HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, ToDomainError(NewValidationError("bad", nil)).HTTPStatus)
}
