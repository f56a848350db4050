package core

import "time"

// Audit actions
const (
	ActionChallengeGenerated = "challenge_generated"
	ActionWalletConnected    = "wallet_connected"
	ActionVerificationFailed = "verification_failed"
	ActionVerificationError  = "verification_error"
	ActionSuspiciousActivity = "suspicious_activity"
	ActionWalletDisconnected = "wallet_disconnected"
)

// Suspicious activity reasons
const (
	ReasonTooManyAttempts = "too_many_attempts"
	ReasonWalletReuse     = "wallet_reuse"
)

// AuditRecord is a write-once entry in the wallet audit log
type AuditRecord struct {
	ID          string
	UserID      string
	Action      string
	PublicKey   string
	PreviousKey string
	Metadata    map[string]any
	Origin      Origin
	Suspicious  bool
	Reason      string
	CreatedAt   time.Time
}

// AuditFilter narrows audit log reads. Zero values match everything.
type AuditFilter struct {
	UserID         string
	SuspiciousOnly bool
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest is a 1-based page selector
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request to valid bounds
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of rows to skip
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes the page that was returned
type Pagination struct {
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// AuditPage is a page of audit records, newest first
type AuditPage struct {
	Data       []AuditRecord
	Pagination Pagination
}

// NewAuditPage assembles a page from a normalized request and the total count
func NewAuditPage(records []AuditRecord, req PageRequest, total int64) AuditPage {
	pages := 0
	if req.Limit > 0 {
		pages = int((total + int64(req.Limit) - 1) / int64(req.Limit))
	}
	if records == nil {
		records = []AuditRecord{}
	}
	return AuditPage{
		Data: records,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: pages,
		},
	}
}
