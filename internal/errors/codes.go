package errors

// Error code constants for API responses.
const (
	// Compose errors
	ErrEncodingFailed = "ENCODING_FAILED"
	ErrEmptyMatrix    = "EMPTY_MATRIX"

	// Preset errors
	ErrPresetNotFound = "PRESET_NOT_FOUND"

	// Request errors
	ErrInvalidJSON     = "INVALID_JSON"
	ErrBodyTooLarge    = "BODY_TOO_LARGE"
	ErrInvalidContents = "INVALID_CONTENTS"
	ErrRateLimited     = "RATE_LIMITED"

	// System errors
	ErrDatabaseCorrupted = "DATABASE_CORRUPTED"

	// General
	ErrValidation = "VALIDATION_ERROR"
	ErrNotFound   = "NOT_FOUND"
	ErrInternal   = "INTERNAL_ERROR"
)
