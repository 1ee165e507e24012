package manifest

import "errors"

var (
	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")

	// ErrNotFound is returned when the manifest blob does not exist.
	ErrNotFound = errors.New("manifest not found")

	// ErrInvalidIndex is returned when chunk index parameters are inconsistent.
	ErrInvalidIndex = errors.New("invalid chunk index")
)
