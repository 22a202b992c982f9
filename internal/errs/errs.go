package errs

import "errors"

// Domain sentinel errors, mapped to HTTP status codes in handlers.
var (
	ErrMissingParameter    = errors.New("job_id/pin required")
	ErrInvalidSession      = errors.New("invalid or inactive session")
	ErrWrongPIN            = errors.New("wrong pin")
	ErrJobNotFound         = errors.New("job not found")
	ErrTooManyAttempts     = errors.New("too many pin attempts")
	ErrWriterTokenMismatch = errors.New("writer token mismatch")
	ErrGenerationExhausted = errors.New("job id generation exhausted")
)
