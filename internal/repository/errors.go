// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is trying to
// read or submit a checkout owned by someone else, while ErrConflict
// signals that a state transition cannot proceed because the row is
// no longer in the expected state (e.g. a stale double submit).
package repository

import "errors"

// ErrTierNotFound is returned when a price tier id does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrTierNotFound = errors.New("price tier not found")

// ErrCheckoutNotFound is returned when a checkout id does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrCheckoutNotFound = errors.New("checkout not found")

// ErrForbidden is returned when the caller attempts an operation
// on a checkout they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as transitioning a checkout that another
// request already moved out of the expected state. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
