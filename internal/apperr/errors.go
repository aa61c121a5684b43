// Package apperr holds the sentinel errors shared across nbpress packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrMissingFile means a metadata, index or notebook file does not exist.
	// Loaders treat it as "nothing to load".
	ErrMissingFile = errors.New("missing file")

	// ErrMalformedLine marks a metadata line without the "Key: value" shape.
	ErrMalformedLine = errors.New("malformed metadata line")

	// ErrUnsupportedVersion is returned when a notebook cannot be read at the
	// expected nbformat version nor at its own reported one.
	ErrUnsupportedVersion = errors.New("unsupported notebook version")

	// ErrWriteFailed wraps any content, metadata or index write failure.
	// It aborts a synchronization pass.
	ErrWriteFailed = errors.New("write failed")
)
