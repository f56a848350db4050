package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
)

// Config holds the service limits and the challenge text parameters
type Config struct {
	Domain               string
	Banner               string
	MaxAttemptsPerWindow int
	AttemptWindow        time.Duration
	MaxWalletReuse       int
	ReuseWindow          time.Duration
}

// DefaultConfig returns the production limits
func DefaultConfig() Config {
	return Config{
		Domain:               "localhost",
		Banner:               "Wallet Ownership Verification",
		MaxAttemptsPerWindow: 10,
		AttemptWindow:        time.Hour,
		MaxWalletReuse:       5,
		ReuseWindow:          30 * 24 * time.Hour,
	}
}

// Option customizes a WalletService
type Option func(*WalletService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *WalletService) { s.now = now }
}

// WithEventPublisher publishes wallet changes after they commit
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(s *WalletService) { s.eventPub = p }
}

// WithMetrics records operation outcomes on m
func WithMetrics(m *Metrics) Option {
	return func(s *WalletService) { s.metrics = m }
}

// WithLogger replaces slog.Default
func WithLogger(l *slog.Logger) Option {
	return func(s *WalletService) { s.logger = l }
}

// WalletService handles wallet ownership verification business logic
type WalletService struct {
	store    ports.UnitOfWork
	scheme   ports.Scheme
	locker   ports.Locker
	eventPub ports.EventPublisher
	metrics  *Metrics
	detector *Detector
	logger   *slog.Logger
	now      func() time.Time

	cfg Config
}

// NewWalletService creates a new wallet service
func NewWalletService(
	store ports.UnitOfWork,
	scheme ports.Scheme,
	locker ports.Locker,
	cfg Config,
	opts ...Option,
) *WalletService {
	s := &WalletService{
		store:    store,
		scheme:   scheme,
		locker:   locker,
		metrics:  NewMetrics(),
		detector: NewDetector(cfg),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "wallet_service", "scheme", scheme.Name())
	return s
}

// IssueChallenge creates a fresh challenge for the user to sign with publicKey
func (s *WalletService) IssueChallenge(ctx context.Context, userID, publicKey string, origin core.Origin) (*core.Challenge, error) {
	log := s.logger.With("operation", "issue_challenge", "user_id", userID)

	if !s.scheme.ValidateKey(publicKey) {
		log.Info("challenge rejected", "outcome", "invalid_key")
		return nil, core.ErrInvalidKeyFormat
	}

	owner, err := s.store.Accounts().FindByWallet(ctx, publicKey)
	switch {
	case err == nil && owner.ID != userID:
		log.Info("challenge rejected", "outcome", "wallet_bound")
		return nil, core.ErrWalletAlreadyBound
	case err != nil && !errors.Is(err, core.ErrAccountNotFound):
		return nil, fmt.Errorf("failed to look up wallet owner: %w", err)
	}

	unlock, err := s.locker.Lock(ctx, "challenge:"+userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire issuance lock: %w", err)
	}
	defer unlock()

	now := s.now()
	if err := s.detector.CheckVelocity(ctx, s.store.Attempts(), userID, 1, now); err != nil {
		var limited *core.RateLimitError
		if errors.As(err, &limited) {
			s.flagTooManyAttempts(ctx, userID, publicKey, origin, now)
			log.Warn("challenge rejected", "outcome", "rate_limited")
		}
		return nil, err
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	attempt := &core.VerificationAttempt{
		ID:        uuid.New().String(),
		UserID:    userID,
		PublicKey: publicKey,
		Nonce:     nonce,
		Message: core.BuildChallengeMessage(core.ChallengeParams{
			Banner:    s.cfg.Banner,
			Domain:    s.cfg.Domain,
			UserID:    userID,
			PublicKey: publicKey,
			Nonce:     nonce,
			IssuedAt:  now,
		}),
		Status:    core.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(core.ChallengeTTL),
		Origin:    origin,
	}

	var superseded int64
	err = s.store.WithinTx(ctx, func(tx ports.Stores) error {
		n, err := tx.Attempts().ExpirePending(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to expire pending attempts: %w", err)
		}
		superseded = n

		if err := tx.Attempts().Create(ctx, attempt); err != nil {
			return fmt.Errorf("failed to store attempt: %w", err)
		}

		rec := newAuditEntry(userID, core.ActionChallengeGenerated, origin, now).
			key(publicKey).
			with("attempt_id", attempt.ID).
			with("nonce", nonce).
			with("expires_at", attempt.ExpiresAt.Format(time.RFC3339Nano)).
			record()
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to append audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.incChallengesIssued()
	log.Info("challenge issued", "outcome", "issued", "attempt_id", attempt.ID, "superseded", superseded)

	return &core.Challenge{
		AttemptID: attempt.ID,
		Nonce:     nonce,
		Message:   attempt.Message,
		ExpiresAt: attempt.ExpiresAt,
	}, nil
}

// VerifyAndConnect checks a signed challenge and binds the wallet to the user.
// It returns the bound wallet address.
func (s *WalletService) VerifyAndConnect(ctx context.Context, userID string, req core.VerifyRequest, origin core.Origin) (string, error) {
	log := s.logger.With("operation", "verify_and_connect", "user_id", userID)
	now := s.now()

	attempt, err := s.store.Attempts().FindPending(ctx, userID, req.PublicKey, req.Message, now)
	if err != nil {
		if errors.Is(err, core.ErrAttemptNotFound) {
			s.metrics.incVerification(OutcomeNoChallenge)
			log.Info("verification rejected", "outcome", OutcomeNoChallenge)
			return "", core.ErrNoValidChallenge
		}
		return "", fmt.Errorf("failed to find pending attempt: %w", err)
	}
	log = log.With("attempt_id", attempt.ID)

	if !s.scheme.Verify(req.Message, req.Signature, req.PublicKey) {
		if err := s.rejectInvalidSignature(ctx, attempt, req, origin, now); err != nil {
			if errors.Is(err, core.ErrNoValidChallenge) {
				s.metrics.incVerification(OutcomeNoChallenge)
			}
			return "", err
		}
		s.metrics.incVerification(OutcomeInvalidSignature)
		log.Info("verification rejected", "outcome", OutcomeInvalidSignature)
		return "", core.ErrInvalidSignature
	}

	previous, err := s.connect(ctx, attempt, req, origin, now)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNoValidChallenge):
		// Another request already settled this attempt
		s.metrics.incVerification(OutcomeNoChallenge)
		log.Info("verification rejected", "outcome", OutcomeNoChallenge)
		return "", err
	case errors.Is(err, core.ErrTooManyAttempts):
		s.metrics.incVerification(OutcomeRateLimited)
		log.Warn("verification rejected", "outcome", OutcomeRateLimited)
		return "", err
	default:
		s.metrics.incVerification(OutcomeError)
		log.Error("verification failed", "outcome", OutcomeError, "error", err)
		s.recordVerificationError(ctx, attempt, req, origin, err)
		return "", err
	}

	s.metrics.incVerification(OutcomeVerified)
	log.Info("wallet connected", "outcome", OutcomeVerified, "wallet", req.PublicKey)

	if s.eventPub != nil {
		if err := s.eventPub.PublishWalletConnected(ctx, userID, req.PublicKey, previous, now); err != nil {
			log.Warn("failed to publish wallet connected event", "error", err)
		}
	}
	return req.PublicKey, nil
}

// rejectInvalidSignature settles the attempt as REJECTED and records the failure
func (s *WalletService) rejectInvalidSignature(ctx context.Context, attempt *core.VerificationAttempt, req core.VerifyRequest, origin core.Origin, now time.Time) error {
	return s.store.WithinTx(ctx, func(tx ports.Stores) error {
		moved, err := tx.Attempts().Transition(ctx, attempt.ID, core.Transition{
			To:        core.StatusRejected,
			Signature: req.Signature,
		})
		if err != nil {
			return fmt.Errorf("failed to reject attempt: %w", err)
		}
		if !moved {
			return core.ErrNoValidChallenge
		}

		rec := newAuditEntry(attempt.UserID, core.ActionVerificationFailed, origin, now).
			key(req.PublicKey).
			with("attempt_id", attempt.ID).
			with("reason", OutcomeInvalidSignature).
			record()
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to append audit record: %w", err)
		}
		return nil
	})
}

// connect runs the post-signature checks and commits the binding. It returns
// the wallet the account held before.
func (s *WalletService) connect(ctx context.Context, attempt *core.VerificationAttempt, req core.VerifyRequest, origin core.Origin, now time.Time) (string, error) {
	userID := attempt.UserID

	if err := s.detector.CheckVelocity(ctx, s.store.Attempts(), userID, 0, now); err != nil {
		var limited *core.RateLimitError
		if !errors.As(err, &limited) {
			return "", err
		}
		txErr := s.store.WithinTx(ctx, func(tx ports.Stores) error {
			moved, err := tx.Attempts().Transition(ctx, attempt.ID, core.Transition{
				To:        core.StatusRejected,
				Signature: req.Signature,
			})
			if err != nil {
				return fmt.Errorf("failed to reject attempt: %w", err)
			}
			if !moved {
				return core.ErrNoValidChallenge
			}
			rec := newAuditEntry(userID, core.ActionSuspiciousActivity, origin, now).
				key(req.PublicKey).
				with("attempt_id", attempt.ID).
				suspicious(core.ReasonTooManyAttempts).
				record()
			return tx.Audit().Append(ctx, rec)
		})
		if txErr != nil {
			return "", txErr
		}
		s.metrics.incSuspicious(core.ReasonTooManyAttempts)
		return "", err
	}

	var previous string
	var reused bool
	err := s.store.WithinTx(ctx, func(tx ports.Stores) error {
		flagged, connections, err := s.detector.WalletReused(ctx, tx.Audit(), req.PublicKey, now)
		if err != nil {
			return err
		}
		if flagged {
			rec := newAuditEntry(userID, core.ActionSuspiciousActivity, origin, now).
				key(req.PublicKey).
				with("attempt_id", attempt.ID).
				with("connections", connections).
				suspicious(core.ReasonWalletReuse).
				record()
			if err := tx.Audit().Append(ctx, rec); err != nil {
				return fmt.Errorf("failed to append audit record: %w", err)
			}
		}
		reused = flagged

		verifiedAt := now
		moved, err := tx.Attempts().Transition(ctx, attempt.ID, core.Transition{
			To:         core.StatusVerified,
			Signature:  req.Signature,
			VerifiedAt: &verifiedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to mark attempt verified: %w", err)
		}
		if !moved {
			return core.ErrNoValidChallenge
		}

		account, err := tx.Accounts().FindByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}
		previous = account.WalletAddress

		// The key may have been bound elsewhere after the challenge was issued
		if err := tx.Accounts().BindWallet(ctx, userID, req.PublicKey, now); err != nil {
			return fmt.Errorf("failed to bind wallet: %w", err)
		}

		rec := newAuditEntry(userID, core.ActionWalletConnected, origin, now).
			key(req.PublicKey).
			previous(previous).
			with("attempt_id", attempt.ID).
			record()
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to append audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if reused {
		s.metrics.incSuspicious(core.ReasonWalletReuse)
		s.logger.Warn("wallet reused across accounts",
			"operation", "verify_and_connect", "outcome", core.ReasonWalletReuse, "user_id", userID, "wallet", req.PublicKey)
	}
	return previous, nil
}

// recordVerificationError settles the attempt as REJECTED and records cause.
// It is best effort: the caller already has an error to return.
func (s *WalletService) recordVerificationError(ctx context.Context, attempt *core.VerificationAttempt, req core.VerifyRequest, origin core.Origin, cause error) {
	ctx = context.WithoutCancel(ctx)
	err := s.store.WithinTx(ctx, func(tx ports.Stores) error {
		if _, err := tx.Attempts().Transition(ctx, attempt.ID, core.Transition{
			To:        core.StatusRejected,
			Signature: req.Signature,
		}); err != nil {
			return err
		}
		rec := newAuditEntry(attempt.UserID, core.ActionVerificationError, origin, s.now()).
			key(req.PublicKey).
			with("attempt_id", attempt.ID).
			with("error", cause.Error()).
			record()
		return tx.Audit().Append(ctx, rec)
	})
	if err != nil {
		s.logger.Error("failed to record verification error",
			"operation", "verify_and_connect", "user_id", attempt.UserID, "attempt_id", attempt.ID, "error", err)
	}
}

// flagTooManyAttempts records a rate limited issuance. A failure to record is
// logged and does not change the outcome.
func (s *WalletService) flagTooManyAttempts(ctx context.Context, userID, publicKey string, origin core.Origin, now time.Time) {
	rec := newAuditEntry(userID, core.ActionSuspiciousActivity, origin, now).
		key(publicKey).
		with("operation", "issue_challenge").
		suspicious(core.ReasonTooManyAttempts).
		record()
	if err := s.store.Audit().Append(ctx, rec); err != nil {
		s.logger.Error("failed to record suspicious activity",
			"operation", "issue_challenge", "user_id", userID, "error", err)
		return
	}
	s.metrics.incSuspicious(core.ReasonTooManyAttempts)
}

// DisconnectWallet unbinds the user's wallet and expires open challenges
func (s *WalletService) DisconnectWallet(ctx context.Context, userID string, origin core.Origin) error {
	log := s.logger.With("operation", "disconnect_wallet", "user_id", userID)
	now := s.now()

	var previous string
	var expired int64
	err := s.store.WithinTx(ctx, func(tx ports.Stores) error {
		account, err := tx.Accounts().FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if !account.Connected() {
			return core.ErrNoWalletConnected
		}
		previous = account.WalletAddress

		if err := tx.Accounts().ClearWallet(ctx, userID); err != nil {
			return fmt.Errorf("failed to clear wallet: %w", err)
		}
		n, err := tx.Attempts().ExpirePending(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to expire pending attempts: %w", err)
		}
		expired = n

		rec := newAuditEntry(userID, core.ActionWalletDisconnected, origin, now).
			previous(previous).
			with("expired_attempts", n).
			record()
		if err := tx.Audit().Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to append audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("wallet disconnected", "outcome", "disconnected", "expired_attempts", expired)

	if s.eventPub != nil {
		if err := s.eventPub.PublishWalletDisconnected(ctx, userID, previous, now); err != nil {
			log.Warn("failed to publish wallet disconnected event", "error", err)
		}
	}
	return nil
}

// GetStatus returns the wallet fields of the account and its open challenges
func (s *WalletService) GetStatus(ctx context.Context, userID string) (*core.WalletStatus, error) {
	account, err := s.store.Accounts().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.Attempts().CountPending(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to count pending attempts: %w", err)
	}
	return &core.WalletStatus{
		Connected:            account.Connected(),
		WalletAddress:        account.WalletAddress,
		ConnectedAt:          account.WalletConnectedAt,
		LastVerified:         account.WalletLastVerified,
		PendingVerifications: pending,
	}, nil
}

// GetHistory returns the user's audit records, newest first
func (s *WalletService) GetHistory(ctx context.Context, userID string, page core.PageRequest) (core.AuditPage, error) {
	return s.listAudit(ctx, core.AuditFilter{UserID: userID}, page)
}

// GetSuspiciousActivity returns suspicious records of every user, newest
// first. Callers must restrict it to administrators.
func (s *WalletService) GetSuspiciousActivity(ctx context.Context, page core.PageRequest) (core.AuditPage, error) {
	return s.listAudit(ctx, core.AuditFilter{SuspiciousOnly: true}, page)
}

func (s *WalletService) listAudit(ctx context.Context, filter core.AuditFilter, page core.PageRequest) (core.AuditPage, error) {
	page = page.Normalize()
	records, total, err := s.store.Audit().List(ctx, filter, page)
	if err != nil {
		return core.AuditPage{}, fmt.Errorf("failed to list audit records: %w", err)
	}
	return core.NewAuditPage(records, page, total), nil
}

// newNonce returns 32 random bytes, hex encoded
func newNonce() (string, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(nonceBytes), nil
}
