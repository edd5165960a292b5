package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required file or directory was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidSchema indicates a CSV header does not carry the expected columns
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupported indicates an unknown backend or dialect
	ErrUnsupported = errors.New("unsupported")
)
