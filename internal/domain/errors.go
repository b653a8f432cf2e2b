package domain

import "errors"

var (
	// ErrConfiguration marks a malformed schema descriptor. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrRemoteUnavailable is the soft failure of tenant lookups. It is absorbed
	// by the resolver and never reaches a caller.
	ErrRemoteUnavailable = errors.New("remote directory unavailable")

	// ErrDirectoryUnavailable is the hard failure of internal-user lookups.
	ErrDirectoryUnavailable = errors.New("internal user directory unavailable")

	// ErrSchemaProbeExhausted is logged when no candidate tenant column exists.
	ErrSchemaProbeExhausted = errors.New("schema probe exhausted")

	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
)
