package service

import (
	"time"

	"github.com/layer-3/walletlink/core"
)

// auditEntry builds one audit record. Records are appended through the
// store of the unit of work they describe.
type auditEntry struct {
	rec core.AuditRecord
}

func newAuditEntry(userID, action string, origin core.Origin, at time.Time) *auditEntry {
	return &auditEntry{rec: core.AuditRecord{
		UserID:    userID,
		Action:    action,
		Origin:    origin,
		CreatedAt: at,
		Metadata:  map[string]any{},
	}}
}

func (e *auditEntry) key(publicKey string) *auditEntry {
	e.rec.PublicKey = publicKey
	return e
}

func (e *auditEntry) previous(previousKey string) *auditEntry {
	e.rec.PreviousKey = previousKey
	return e
}

func (e *auditEntry) with(field string, value any) *auditEntry {
	e.rec.Metadata[field] = value
	return e
}

func (e *auditEntry) suspicious(reason string) *auditEntry {
	e.rec.Suspicious = true
	e.rec.Reason = reason
	return e
}

func (e *auditEntry) record() *core.AuditRecord {
	rec := e.rec
	return &rec
}
