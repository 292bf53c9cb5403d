package core

import "errors"

// Error kinds the consumer routes on. InvalidInput and UnknownUser are
// per-message (log and drop, no requeue); UnknownType signals schema drift
// and is fatal for the consumer.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnknownUser  = errors.New("unknown user")
	ErrUnknownType  = errors.New("unknown report type")
)

// IsInvalidInput reports whether err is (or wraps) ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
