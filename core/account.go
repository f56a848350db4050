package core

import "time"

// Account is the externally owned user record. Only the wallet fields are
// mutated by walletlink.
type Account struct {
	ID                 string
	WalletAddress      string
	WalletConnectedAt  *time.Time
	WalletLastVerified *time.Time
}

// Connected reports whether a wallet is currently bound
func (a *Account) Connected() bool {
	return a.WalletAddress != ""
}

// WalletStatus is the read model returned by status queries
type WalletStatus struct {
	Connected            bool
	WalletAddress        string
	ConnectedAt          *time.Time
	LastVerified         *time.Time
	PendingVerifications int64
}

// Challenge is what the caller receives after a successful issuance
type Challenge struct {
	AttemptID string
	Nonce     string
	Message   string
	ExpiresAt time.Time
}

// VerifyRequest is the signed challenge submitted for verification
type VerifyRequest struct {
	PublicKey string
	Message   string
	Signature string
}

// Caller is the authenticated principal resolved by the transport
type Caller struct {
	UserID string
	Role   string
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// IsAdmin reports whether the caller may read cross-account audit data
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
