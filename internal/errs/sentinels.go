// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across client/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist (remotely or in the local list).
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing, expired or rejected session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated request the backend refused.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidCredentials indicates a rejected login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidID indicates a missing or malformed record identifier (rejected before any remote call).
	ErrInvalidID = errors.New("invalid id")

	// ErrFileDelete indicates that deleting the media files of a record failed; the record was kept.
	ErrFileDelete = errors.New("file delete failed")

	// ErrBackend indicates a transport or server-side failure of the backend.
	ErrBackend = errors.New("backend unavailable")
)
