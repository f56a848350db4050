package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
)

// memState holds every record of a MemoryStore. It is cloned for each unit of
// work and swapped in on commit.
type memState struct {
	accounts map[string]core.Account
	attempts map[string]core.VerificationAttempt
	audit    []core.AuditRecord
}

func newMemState() *memState {
	return &memState{
		accounts: make(map[string]core.Account),
		attempts: make(map[string]core.VerificationAttempt),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		accounts: make(map[string]core.Account, len(s.accounts)),
		attempts: make(map[string]core.VerificationAttempt, len(s.attempts)),
		audit:    make([]core.AuditRecord, len(s.audit)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	copy(c.audit, s.audit)
	return c
}

var _ ports.UnitOfWork = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of ports.UnitOfWork.
// It is intended for tests and single-process development runs.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// PutAccount seeds or replaces an account. Accounts are owned outside
// walletlink, so this only exists for the in-memory backend.
func (s *MemoryStore) PutAccount(account core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.accounts[account.ID] = account
}

func (s *MemoryStore) Accounts() ports.AccountStore { return memAccounts{s.view} }
func (s *MemoryStore) Attempts() ports.AttemptStore { return memAttempts{s.view} }
func (s *MemoryStore) Audit() ports.AuditStore      { return memAudit{s.view} }

// view runs fn against the committed state under the store lock
func (s *MemoryStore) view(fn func(st *memState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// WithinTx runs fn against a private copy of the state and commits it only if
// fn succeeds. Units of work are serialized.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx ports.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.state.clone()
	if err := fn(memTx{staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

type viewFunc func(fn func(st *memState) error) error

// memTx exposes a staged state without locking; the lock is held by WithinTx
type memTx struct {
	st *memState
}

func (t memTx) run(fn func(st *memState) error) error { return fn(t.st) }

func (t memTx) Accounts() ports.AccountStore { return memAccounts{t.run} }
func (t memTx) Attempts() ports.AttemptStore { return memAttempts{t.run} }
func (t memTx) Audit() ports.AuditStore      { return memAudit{t.run} }

type memAccounts struct{ with viewFunc }

func (r memAccounts) FindByID(ctx context.Context, userID string) (*core.Account, error) {
	var out *core.Account
	err := r.with(func(st *memState) error {
		acc, ok := st.accounts[userID]
		if !ok {
			return core.ErrAccountNotFound
		}
		out = &acc
		return nil
	})
	return out, err
}

func (r memAccounts) FindByWallet(ctx context.Context, walletAddress string) (*core.Account, error) {
	var out *core.Account
	err := r.with(func(st *memState) error {
		for _, acc := range st.accounts {
			if acc.WalletAddress != "" && acc.WalletAddress == walletAddress {
				found := acc
				out = &found
				return nil
			}
		}
		return core.ErrAccountNotFound
	})
	return out, err
}

func (r memAccounts) BindWallet(ctx context.Context, userID, walletAddress string, at time.Time) error {
	return r.with(func(st *memState) error {
		acc, ok := st.accounts[userID]
		if !ok {
			return core.ErrAccountNotFound
		}
		for id, other := range st.accounts {
			if id != userID && other.WalletAddress == walletAddress {
				return core.ErrWalletAlreadyBound
			}
		}
		ts := at
		acc.WalletAddress = walletAddress
		acc.WalletConnectedAt = &ts
		acc.WalletLastVerified = &ts
		st.accounts[userID] = acc
		return nil
	})
}

func (r memAccounts) ClearWallet(ctx context.Context, userID string) error {
	return r.with(func(st *memState) error {
		acc, ok := st.accounts[userID]
		if !ok {
			return core.ErrAccountNotFound
		}
		acc.WalletAddress = ""
		acc.WalletConnectedAt = nil
		acc.WalletLastVerified = nil
		st.accounts[userID] = acc
		return nil
	})
}

type memAttempts struct{ with viewFunc }

func (r memAttempts) Create(ctx context.Context, attempt *core.VerificationAttempt) error {
	return r.with(func(st *memState) error {
		if attempt.ID == "" {
			attempt.ID = uuid.New().String()
		}
		st.attempts[attempt.ID] = *attempt
		return nil
	})
}

func (r memAttempts) FindPending(ctx context.Context, userID, publicKey, message string, now time.Time) (*core.VerificationAttempt, error) {
	var out *core.VerificationAttempt
	err := r.with(func(st *memState) error {
		for _, a := range st.attempts {
			if a.UserID != userID || a.PublicKey != publicKey || a.Message != message {
				continue
			}
			if a.Status != core.StatusPending || a.Expired(now) {
				continue
			}
			if out == nil || a.CreatedAt.After(out.CreatedAt) {
				found := a
				out = &found
			}
		}
		if out == nil {
			return core.ErrAttemptNotFound
		}
		return nil
	})
	return out, err
}

func (r memAttempts) Transition(ctx context.Context, attemptID string, t core.Transition) (bool, error) {
	var moved bool
	err := r.with(func(st *memState) error {
		a, ok := st.attempts[attemptID]
		if !ok || a.Status != core.StatusPending {
			return nil
		}
		a.Status = t.To
		if t.Signature != "" {
			a.Signature = t.Signature
		}
		if t.VerifiedAt != nil {
			ts := *t.VerifiedAt
			a.VerifiedAt = &ts
		}
		st.attempts[attemptID] = a
		moved = true
		return nil
	})
	return moved, err
}

func (r memAttempts) ExpirePending(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.with(func(st *memState) error {
		for id, a := range st.attempts {
			if a.UserID == userID && a.Status == core.StatusPending {
				a.Status = core.StatusExpired
				st.attempts[id] = a
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memAttempts) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := r.with(func(st *memState) error {
		for _, a := range st.attempts {
			if a.UserID == userID && !a.CreatedAt.Before(since) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memAttempts) CountPending(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := r.with(func(st *memState) error {
		for _, a := range st.attempts {
			if a.UserID == userID && a.Status == core.StatusPending && !a.Expired(now) {
				n++
			}
		}
		return nil
	})
	return n, err
}

type memAudit struct{ with viewFunc }

func (r memAudit) Append(ctx context.Context, record *core.AuditRecord) error {
	return r.with(func(st *memState) error {
		if record.ID == "" {
			record.ID = uuid.New().String()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now().UTC()
		}
		st.audit = append(st.audit, *record)
		return nil
	})
}

func (r memAudit) CountByKey(ctx context.Context, action, publicKey string, since time.Time) (int64, error) {
	var n int64
	err := r.with(func(st *memState) error {
		for _, rec := range st.audit {
			if rec.Action == action && rec.PublicKey == publicKey && !rec.CreatedAt.Before(since) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memAudit) List(ctx context.Context, filter core.AuditFilter, page core.PageRequest) ([]core.AuditRecord, int64, error) {
	page = page.Normalize()
	var matched []core.AuditRecord
	err := r.with(func(st *memState) error {
		// Iterate in reverse insertion order (newest first)
		for i := len(st.audit) - 1; i >= 0; i-- {
			rec := st.audit[i]
			if filter.UserID != "" && rec.UserID != filter.UserID {
				continue
			}
			if filter.SuspiciousOnly && !rec.Suspicious {
				continue
			}
			matched = append(matched, rec)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := page.Offset()
	if start >= len(matched) {
		return []core.AuditRecord{}, total, nil
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
