package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidKeyFormat   = errors.New("invalid wallet public key")
	ErrWalletAlreadyBound = errors.New("wallet already connected to another account")
	ErrTooManyAttempts    = errors.New("too many verification attempts")
	// ErrNoValidChallenge does not say whether the key, the message or the
	// expiry failed to match.
	ErrNoValidChallenge  = errors.New("invalid or expired challenge")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrNoWalletConnected = errors.New("no wallet connected")

	ErrAccountNotFound = errors.New("account not found")
	ErrAttemptNotFound = errors.New("verification attempt not found")
	ErrForbidden       = errors.New("forbidden")
)

// RateLimitError is returned when the velocity limit is exceeded
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrTooManyAttempts, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrTooManyAttempts
}
