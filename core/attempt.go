package core

import "time"

// AttemptStatus is the lifecycle state of a verification attempt
type AttemptStatus string

const (
	StatusPending  AttemptStatus = "PENDING"
	StatusVerified AttemptStatus = "VERIFIED"
	StatusRejected AttemptStatus = "REJECTED"
	StatusExpired  AttemptStatus = "EXPIRED"
)

// Terminal reports whether no further transition is allowed from s
func (s AttemptStatus) Terminal() bool {
	return s == StatusVerified || s == StatusRejected || s == StatusExpired
}

// Origin carries request metadata captured by the transport
type Origin struct {
	IPAddress string
	UserAgent string
}

// VerificationAttempt represents one challenge lifecycle
type VerificationAttempt struct {
	ID         string        // Unique identifier for the attempt
	UserID     string        // Account the challenge was issued for
	PublicKey  string        // Candidate wallet public key
	Nonce      string        // Random hex nonce embedded in the message
	Message    string        // Full challenge text the user signs
	Status     AttemptStatus // Current lifecycle state
	CreatedAt  time.Time     // When the challenge was issued
	ExpiresAt  time.Time     // When the challenge stops being accepted
	Signature  string        // Submitted signature, set on VERIFIED or REJECTED
	VerifiedAt *time.Time    // Set on VERIFIED
	Origin     Origin
}

// Expired reports whether the attempt can no longer be accepted at now
func (a *VerificationAttempt) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Transition describes a guarded move of a PENDING attempt to a terminal state
type Transition struct {
	To         AttemptStatus
	Signature  string
	VerifiedAt *time.Time
}
