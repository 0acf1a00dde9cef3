package asset

import "errors"

var (
	// ErrNotFound is returned when no source has bytes for a key.
	ErrNotFound = errors.New("asset: not found")

	// ErrInvalidKey is returned for empty keys and keys escaping the search roots.
	ErrInvalidKey = errors.New("asset: invalid key")
)
