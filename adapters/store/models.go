package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletlink/core"
)

type accountModel struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	WalletAddress      *string    `gorm:"column:wallet_address"`
	WalletConnectedAt  *time.Time `gorm:"column:wallet_connected_at"`
	WalletLastVerified *time.Time `gorm:"column:wallet_last_verified"`
}

func (accountModel) TableName() string { return "accounts" }

type attemptModel struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID     string     `gorm:"column:user_id"`
	PublicKey  string     `gorm:"column:public_key"`
	Nonce      string     `gorm:"column:nonce"`
	Message    string     `gorm:"column:message"`
	Status     string     `gorm:"column:status"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	ExpiresAt  time.Time  `gorm:"column:expires_at"`
	Signature  *string    `gorm:"column:signature"`
	VerifiedAt *time.Time `gorm:"column:verified_at"`
	IPAddress  *string    `gorm:"column:ip_address"`
	UserAgent  *string    `gorm:"column:user_agent"`
}

func (attemptModel) TableName() string { return "verification_attempts" }

type auditModel struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID      string    `gorm:"column:user_id"`
	Action      string    `gorm:"column:action"`
	PublicKey   *string   `gorm:"column:public_key"`
	PreviousKey *string   `gorm:"column:previous_key"`
	Metadata    string    `gorm:"column:metadata;type:jsonb"`
	IPAddress   *string   `gorm:"column:ip_address"`
	UserAgent   *string   `gorm:"column:user_agent"`
	Suspicious  bool      `gorm:"column:suspicious"`
	Reason      *string   `gorm:"column:reason"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (auditModel) TableName() string { return "wallet_audit_logs" }

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func toDomainAccount(m accountModel) *core.Account {
	return &core.Account{
		ID:                 m.ID,
		WalletAddress:      derefString(m.WalletAddress),
		WalletConnectedAt:  m.WalletConnectedAt,
		WalletLastVerified: m.WalletLastVerified,
	}
}

func toAttemptModel(a *core.VerificationAttempt) (attemptModel, error) {
	id := uuid.New()
	if a.ID != "" {
		parsed, err := uuid.Parse(a.ID)
		if err != nil {
			return attemptModel{}, err
		}
		id = parsed
	}
	return attemptModel{
		ID:         id,
		UserID:     a.UserID,
		PublicKey:  a.PublicKey,
		Nonce:      a.Nonce,
		Message:    a.Message,
		Status:     string(a.Status),
		CreatedAt:  a.CreatedAt,
		ExpiresAt:  a.ExpiresAt,
		Signature:  nullableString(a.Signature),
		VerifiedAt: a.VerifiedAt,
		IPAddress:  nullableString(a.Origin.IPAddress),
		UserAgent:  nullableString(a.Origin.UserAgent),
	}, nil
}

func toDomainAttempt(m attemptModel) *core.VerificationAttempt {
	return &core.VerificationAttempt{
		ID:         m.ID.String(),
		UserID:     m.UserID,
		PublicKey:  m.PublicKey,
		Nonce:      m.Nonce,
		Message:    m.Message,
		Status:     core.AttemptStatus(m.Status),
		CreatedAt:  m.CreatedAt,
		ExpiresAt:  m.ExpiresAt,
		Signature:  derefString(m.Signature),
		VerifiedAt: m.VerifiedAt,
		Origin: core.Origin{
			IPAddress: derefString(m.IPAddress),
			UserAgent: derefString(m.UserAgent),
		},
	}
}

func toAuditModel(r *core.AuditRecord) (auditModel, error) {
	meta := r.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return auditModel{}, err
	}
	return auditModel{
		ID:          uuid.New(),
		UserID:      r.UserID,
		Action:      r.Action,
		PublicKey:   nullableString(r.PublicKey),
		PreviousKey: nullableString(r.PreviousKey),
		Metadata:    string(payload),
		IPAddress:   nullableString(r.Origin.IPAddress),
		UserAgent:   nullableString(r.Origin.UserAgent),
		Suspicious:  r.Suspicious,
		Reason:      nullableString(r.Reason),
		CreatedAt:   r.CreatedAt,
	}, nil
}

func toDomainAudit(m auditModel) core.AuditRecord {
	var meta map[string]any
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}
	return core.AuditRecord{
		ID:          m.ID.String(),
		UserID:      m.UserID,
		Action:      m.Action,
		PublicKey:   derefString(m.PublicKey),
		PreviousKey: derefString(m.PreviousKey),
		Metadata:    meta,
		Origin: core.Origin{
			IPAddress: derefString(m.IPAddress),
			UserAgent: derefString(m.UserAgent),
		},
		Suspicious: m.Suspicious,
		Reason:     derefString(m.Reason),
		CreatedAt:  m.CreatedAt,
	}
}
