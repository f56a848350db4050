package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
	"gorm.io/gorm"
)

var _ ports.UnitOfWork = (*GormStore)(nil)

// GormStore implements ports.UnitOfWork on Postgres through gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Accounts() ports.AccountStore { return &gormAccounts{db: s.db} }
func (s *GormStore) Attempts() ports.AttemptStore { return &gormAttempts{db: s.db} }
func (s *GormStore) Audit() ports.AuditStore      { return &gormAudit{db: s.db} }

// WithinTx runs fn in a database transaction, rolled back when fn fails
func (s *GormStore) WithinTx(ctx context.Context, fn func(tx ports.Stores) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

type gormAccounts struct {
	db *gorm.DB
}

func (r *gormAccounts) FindByID(ctx context.Context, userID string) (*core.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where("id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomainAccount(rec), nil
}

func (r *gormAccounts) FindByWallet(ctx context.Context, walletAddress string) (*core.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomainAccount(rec), nil
}

func (r *gormAccounts) BindWallet(ctx context.Context, userID, walletAddress string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"wallet_address":       walletAddress,
			"wallet_connected_at":  at,
			"wallet_last_verified": at,
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return core.ErrWalletAlreadyBound
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

func (r *gormAccounts) ClearWallet(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"wallet_address":       nil,
			"wallet_connected_at":  nil,
			"wallet_last_verified": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

type gormAttempts struct {
	db *gorm.DB
}

func (r *gormAttempts) Create(ctx context.Context, attempt *core.VerificationAttempt) error {
	rec, err := toAttemptModel(attempt)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	attempt.ID = rec.ID.String()
	return nil
}

func (r *gormAttempts) FindPending(ctx context.Context, userID, publicKey, message string, now time.Time) (*core.VerificationAttempt, error) {
	var rec attemptModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("public_key = ?", publicKey).
		Where("message = ?", message).
		Where("status = ?", string(core.StatusPending)).
		Where("expires_at > ?", now).
		Order("created_at DESC").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrAttemptNotFound
		}
		return nil, err
	}
	return toDomainAttempt(rec), nil
}

// Transition only touches rows still PENDING, so concurrent callers racing on
// one attempt see exactly one success.
func (r *gormAttempts) Transition(ctx context.Context, attemptID string, t core.Transition) (bool, error) {
	id, err := uuid.Parse(attemptID)
	if err != nil {
		return false, core.ErrAttemptNotFound
	}
	updates := map[string]any{"status": string(t.To)}
	if t.Signature != "" {
		updates["signature"] = t.Signature
	}
	if t.VerifiedAt != nil {
		updates["verified_at"] = *t.VerifiedAt
	}
	res := r.db.WithContext(ctx).
		Model(&attemptModel{}).
		Where("id = ?", id).
		Where("status = ?", string(core.StatusPending)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormAttempts) ExpirePending(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&attemptModel{}).
		Where("user_id = ?", userID).
		Where("status = ?", string(core.StatusPending)).
		Update("status", string(core.StatusExpired))
	return res.RowsAffected, res.Error
}

func (r *gormAttempts) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&attemptModel{}).
		Where("user_id = ?", userID).
		Where("created_at >= ?", since).
		Count(&n).Error
	return n, err
}

func (r *gormAttempts) CountPending(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&attemptModel{}).
		Where("user_id = ?", userID).
		Where("status = ?", string(core.StatusPending)).
		Where("expires_at > ?", now).
		Count(&n).Error
	return n, err
}

type gormAudit struct {
	db *gorm.DB
}

func (r *gormAudit) Append(ctx context.Context, record *core.AuditRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	rec, err := toAuditModel(record)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	record.ID = rec.ID.String()
	return nil
}

func (r *gormAudit) CountByKey(ctx context.Context, action, publicKey string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&auditModel{}).
		Where("action = ?", action).
		Where("public_key = ?", publicKey).
		Where("created_at >= ?", since).
		Count(&n).Error
	return n, err
}

func (r *gormAudit) List(ctx context.Context, filter core.AuditFilter, page core.PageRequest) ([]core.AuditRecord, int64, error) {
	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&auditModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.SuspiciousOnly {
		query = query.Where("suspicious = ?", true)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []auditModel
	if err := query.Order("created_at DESC").Limit(page.Limit).Offset(page.Offset()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	records := make([]core.AuditRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toDomainAudit(row))
	}
	return records, total, nil
}
