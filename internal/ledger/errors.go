// Package ledger holds the primitives shared by every entity store: the
// error taxonomy of the record exchange and its HTTP mapping. All store
// failures are terminal and synchronous; a rejected operation performs no
// partial mutation and writes no audit record.
package ledger

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthorized indicates a role or ownership check failed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAlreadyExists indicates an id collision on create.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound indicates the id is absent on read or mutate.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates the requested status edge is not in the
	// entity's transition graph.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidInput indicates an empty required field, a non-positive
	// amount, or a violated date constraint.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExpired indicates a time-based precondition failed.
	ErrExpired = errors.New("expired")
	// ErrAlreadyRevoked indicates a revocation was attempted twice.
	ErrAlreadyRevoked = errors.New("already revoked")
	// ErrReentrantMutation indicates a mutation attempted to start another
	// mutation before completing.
	ErrReentrantMutation = errors.New("reentrant mutation")
)

// HTTPStatus maps a store error to the status code the presentation layer
// should return. Unrecognized errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	case errors.Is(err, ErrAlreadyRevoked):
		return http.StatusConflict
	case errors.Is(err, ErrReentrantMutation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
