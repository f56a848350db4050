package service

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
)

// Detector applies the velocity and key reuse rules
type Detector struct {
	maxAttempts   int
	attemptWindow time.Duration
	maxReuse      int
	reuseWindow   time.Duration
}

// NewDetector creates a detector from the service limits
func NewDetector(cfg Config) *Detector {
	return &Detector{
		maxAttempts:   cfg.MaxAttemptsPerWindow,
		attemptWindow: cfg.AttemptWindow,
		maxReuse:      cfg.MaxWalletReuse,
		reuseWindow:   cfg.ReuseWindow,
	}
}

// CheckVelocity returns a *core.RateLimitError when the attempts the user
// created inside the window, plus incoming, exceed the limit.
func (d *Detector) CheckVelocity(ctx context.Context, attempts ports.AttemptStore, userID string, incoming int, now time.Time) error {
	count, err := attempts.CountCreatedSince(ctx, userID, now.Add(-d.attemptWindow))
	if err != nil {
		return fmt.Errorf("count recent attempts: %w", err)
	}
	if count+int64(incoming) > int64(d.maxAttempts) {
		return &core.RateLimitError{RetryAfter: d.attemptWindow}
	}
	return nil
}

// WalletReused reports whether publicKey was connected more often than
// allowed inside the reuse window. It never blocks the caller's operation.
func (d *Detector) WalletReused(ctx context.Context, audit ports.AuditStore, publicKey string, now time.Time) (bool, int64, error) {
	count, err := audit.CountByKey(ctx, core.ActionWalletConnected, publicKey, now.Add(-d.reuseWindow))
	if err != nil {
		return false, 0, fmt.Errorf("count wallet connections: %w", err)
	}
	return count > int64(d.maxReuse), count, nil
}
