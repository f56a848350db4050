package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletlink/core"
)

// AccountStore reads and mutates the wallet fields of externally owned accounts
type AccountStore interface {
	// FindByID returns core.ErrAccountNotFound when the user does not exist
	FindByID(ctx context.Context, userID string) (*core.Account, error)
	// FindByWallet returns core.ErrAccountNotFound when no account holds the wallet
	FindByWallet(ctx context.Context, walletAddress string) (*core.Account, error)
	// BindWallet sets the wallet address and both timestamps to at.
	// Returns core.ErrWalletAlreadyBound if another account holds the address.
	BindWallet(ctx context.Context, userID, walletAddress string, at time.Time) error
	// ClearWallet resets all wallet fields
	ClearWallet(ctx context.Context, userID string) error
}

// AttemptStore persists verification attempts
type AttemptStore interface {
	Create(ctx context.Context, attempt *core.VerificationAttempt) error
	// FindPending returns the newest PENDING attempt matching user, key and
	// message that has not expired at now, or core.ErrAttemptNotFound.
	FindPending(ctx context.Context, userID, publicKey, message string, now time.Time) (*core.VerificationAttempt, error)
	// Transition moves a PENDING attempt to a terminal state. It reports false
	// when the attempt was no longer PENDING.
	Transition(ctx context.Context, attemptID string, t core.Transition) (bool, error)
	// ExpirePending moves every PENDING attempt of the user to EXPIRED
	ExpirePending(ctx context.Context, userID string) (int64, error)
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int64, error)
	CountPending(ctx context.Context, userID string, now time.Time) (int64, error)
}

// AuditStore is the append-only audit log
type AuditStore interface {
	Append(ctx context.Context, record *core.AuditRecord) error
	// CountByKey counts records with the action for the public key since the given time
	CountByKey(ctx context.Context, action, publicKey string, since time.Time) (int64, error)
	// List returns the requested page newest first and the total match count
	List(ctx context.Context, filter core.AuditFilter, page core.PageRequest) ([]core.AuditRecord, int64, error)
}

// Stores groups the repositories that take part in a unit of work
type Stores interface {
	Accounts() AccountStore
	Attempts() AttemptStore
	Audit() AuditStore
}

// UnitOfWork runs fn atomically: either every write made through tx is
// committed or none is.
type UnitOfWork interface {
	Stores
	WithinTx(ctx context.Context, fn func(tx Stores) error) error
}
