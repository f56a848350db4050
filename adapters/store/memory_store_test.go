package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func pendingAttempt(userID, key, message string, createdAt time.Time) *core.VerificationAttempt {
	return &core.VerificationAttempt{
		UserID:    userID,
		PublicKey: key,
		Message:   message,
		Status:    core.StatusPending,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(core.ChallengeTTL),
	}
}

func TestMemoryStoreWithinTxRollsBack(t *testing.T) {
	s := NewMemoryStore()
	s.PutAccount(core.Account{ID: "u1"})
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx ports.Stores) error {
		require.NoError(t, tx.Accounts().BindWallet(ctx, "u1", "K", t0))
		require.NoError(t, tx.Attempts().Create(ctx, pendingAttempt("u1", "K", "m", t0)))
		require.NoError(t, tx.Audit().Append(ctx, &core.AuditRecord{UserID: "u1", Action: core.ActionWalletConnected}))

		// Writes are visible inside the unit of work
		acc, err := tx.Accounts().FindByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "K", acc.WalletAddress)
		return boom
	})
	require.ErrorIs(t, err, boom)

	acc, err := s.Accounts().FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, acc.Connected())

	n, err := s.Attempts().CountCreatedSince(ctx, "u1", t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, total, err := s.Audit().List(ctx, core.AuditFilter{}, core.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMemoryStoreWithinTxCommits(t *testing.T) {
	s := NewMemoryStore()
	s.PutAccount(core.Account{ID: "u1"})
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(tx ports.Stores) error {
		return tx.Accounts().BindWallet(ctx, "u1", "K", t0)
	}))

	acc, err := s.Accounts().FindByWallet(ctx, "K")
	require.NoError(t, err)
	assert.Equal(t, "u1", acc.ID)
	require.NotNil(t, acc.WalletConnectedAt)
	assert.Equal(t, t0, *acc.WalletConnectedAt)
}

func TestMemoryStoreWithinTxCanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(tx ports.Stores) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryAccounts(t *testing.T) {
	s := NewMemoryStore()
	s.PutAccount(core.Account{ID: "a"})
	s.PutAccount(core.Account{ID: "b"})
	ctx := context.Background()

	_, err := s.Accounts().FindByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
	_, err = s.Accounts().FindByWallet(ctx, "")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)

	require.NoError(t, s.Accounts().BindWallet(ctx, "a", "K", t0))
	assert.ErrorIs(t, s.Accounts().BindWallet(ctx, "b", "K", t0), core.ErrWalletAlreadyBound)
	assert.ErrorIs(t, s.Accounts().BindWallet(ctx, "missing", "K2", t0), core.ErrAccountNotFound)

	// Rebinding the same account is allowed
	require.NoError(t, s.Accounts().BindWallet(ctx, "a", "K", t0.Add(time.Minute)))

	require.NoError(t, s.Accounts().ClearWallet(ctx, "a"))
	acc, err := s.Accounts().FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, acc.WalletAddress)
	assert.Nil(t, acc.WalletConnectedAt)
	assert.Nil(t, acc.WalletLastVerified)

	require.NoError(t, s.Accounts().BindWallet(ctx, "b", "K", t0))
}

func TestMemoryAttemptsFindPending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	older := pendingAttempt("u1", "K", "m", t0)
	newer := pendingAttempt("u1", "K", "m", t0.Add(time.Minute))
	require.NoError(t, s.Attempts().Create(ctx, older))
	require.NoError(t, s.Attempts().Create(ctx, newer))
	require.NotEmpty(t, older.ID)

	found, err := s.Attempts().FindPending(ctx, "u1", "K", "m", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, newer.ID, found.ID)

	tests := []struct {
		name           string
		user, key, msg string
		now            time.Time
	}{
		{"other user", "u2", "K", "m", t0},
		{"other key", "u1", "K2", "m", t0},
		{"other message", "u1", "K", "m2", t0},
		{"expired", "u1", "K", "m", t0.Add(time.Minute + core.ChallengeTTL)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Attempts().FindPending(ctx, tt.user, tt.key, tt.msg, tt.now)
			assert.ErrorIs(t, err, core.ErrAttemptNotFound)
		})
	}
}

func TestMemoryAttemptsTransitionIsGuarded(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := pendingAttempt("u1", "K", "m", t0)
	require.NoError(t, s.Attempts().Create(ctx, a))

	verifiedAt := t0.Add(time.Minute)
	moved, err := s.Attempts().Transition(ctx, a.ID, core.Transition{To: core.StatusVerified, Signature: "sig", VerifiedAt: &verifiedAt})
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = s.Attempts().Transition(ctx, a.ID, core.Transition{To: core.StatusRejected})
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = s.Attempts().Transition(ctx, "missing", core.Transition{To: core.StatusRejected})
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = s.Attempts().FindPending(ctx, "u1", "K", "m", t0)
	assert.ErrorIs(t, err, core.ErrAttemptNotFound)
}

func TestMemoryAttemptsExpireAndCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Attempts().Create(ctx, pendingAttempt("u1", "K", "a", t0)))
	require.NoError(t, s.Attempts().Create(ctx, pendingAttempt("u1", "K", "b", t0.Add(30*time.Minute))))
	require.NoError(t, s.Attempts().Create(ctx, pendingAttempt("u2", "K", "c", t0)))

	n, err := s.Attempts().CountPending(ctx, "u1", t0.Add(20*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "the first attempt has expired by time")

	n, err = s.Attempts().CountCreatedSince(ctx, "u1", t0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.Attempts().ExpirePending(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.Attempts().CountPending(ctx, "u1", t0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Attempts().CountPending(ctx, "u2", t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMemoryAuditListAndCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Audit().Append(ctx, &core.AuditRecord{
			UserID:    "u1",
			Action:    core.ActionWalletConnected,
			PublicKey: "K",
			CreatedAt: t0.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.Audit().Append(ctx, &core.AuditRecord{
		UserID:     "u2",
		Action:     core.ActionSuspiciousActivity,
		Suspicious: true,
		Reason:     core.ReasonTooManyAttempts,
		CreatedAt:  t0,
	}))

	n, err := s.Audit().CountByKey(ctx, core.ActionWalletConnected, "K", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	records, total, err := s.Audit().List(ctx, core.AuditFilter{UserID: "u1"}, core.PageRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, records, 2)
	assert.Equal(t, t0.Add(4*time.Hour), records[0].CreatedAt)
	assert.Equal(t, t0.Add(3*time.Hour), records[1].CreatedAt)
	assert.NotEmpty(t, records[0].ID)

	records, total, err = s.Audit().List(ctx, core.AuditFilter{SuspiciousOnly: true}, core.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "u2", records[0].UserID)

	records, _, err = s.Audit().List(ctx, core.AuditFilter{UserID: "u1"}, core.PageRequest{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, records)
}
