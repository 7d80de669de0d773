package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"taskflow/api/internal/engine"
	"taskflow/api/internal/hierarchy"
	"taskflow/api/internal/ordering"
	"taskflow/api/internal/store"
)

const (
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidOperation  = "INVALID_OPERATION"
	CodeCrossWorkspace    = "CROSS_WORKSPACE_NOT_ALLOWED"
	CodeConflict          = "CONFLICT"
	CodeInconsistent      = "INCONSISTENT_HIERARCHY"
	CodeInternal          = "INTERNAL"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func invalidIdentifier(field, value string) *DomainError {
	return domainError(http.StatusBadRequest, CodeInvalidIdentifier, field+" is not a valid identifier", map[string]any{"field": field, "value": value})
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, CodeValidation, message, nil)
}

func invalidOperation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, CodeInvalidOperation, message, nil)
}

func forbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, CodeForbidden, message, nil)
}

// asDomainError converts errors from the layers below the service into the
// error kinds callers see. Store and driver details never leave this
// function for unexpected failures.
func asDomainError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, hierarchy.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return domainError(http.StatusNotFound, CodeNotFound, "Not found", nil)
	case errors.Is(err, hierarchy.ErrInconsistent):
		return domainError(http.StatusConflict, CodeInconsistent, err.Error(), nil)
	case errors.Is(err, ordering.ErrNotChild):
		return domainError(http.StatusUnprocessableEntity, CodeInvalidOperation, err.Error(), nil)
	case errors.Is(err, ordering.ErrInvalidOrder):
		return domainError(http.StatusUnprocessableEntity, CodeInvalidOperation, err.Error(), nil)
	case errors.Is(err, engine.ErrSameParent):
		return domainError(http.StatusUnprocessableEntity, CodeInvalidOperation, err.Error(), nil)
	case errors.Is(err, engine.ErrCrossWorkspace):
		return domainError(http.StatusUnprocessableEntity, CodeCrossWorkspace, "Cannot move across workspaces", nil)
	case errors.Is(err, ordering.ErrStale), errors.Is(err, store.ErrConflict):
		return domainError(http.StatusConflict, CodeConflict, "The ordering changed concurrently; reload and retry", nil)
	case errors.Is(err, store.ErrCollision):
		return domainError(http.StatusConflict, CodeConflict, "Item already exists", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return domainError(http.StatusServiceUnavailable, CodeInternal, "Mutation timed out", nil)
	}
	return domainError(http.StatusInternalServerError, CodeInternal, "Server error", nil)
}
