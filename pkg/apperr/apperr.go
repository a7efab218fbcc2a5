// Package apperr holds the error classes shared by every service. Domain
// packages wrap these with %w so the HTTP layer can map them to status codes
// with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid request")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream service failure")

	// ErrBadSignature is an unauthorized callback whose signature did not match.
	ErrBadSignature = fmt.Errorf("bad signature: %w", ErrUnauthorized)
)
