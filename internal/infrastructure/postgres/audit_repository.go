package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/ledger"
)

var _ ledger.AuditSink = (*AuditRepo)(nil)

// AuditRepo canal lateral de auditoría sobre PostgreSQL: tabla append-only,
// un registro por cambio de movimiento/estado. El caller (el libro de stock)
// trata los fallos como mejor esfuerzo.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Append escribe una entrada de auditoría con payload JSON.
func (r *AuditRepo) Append(ctx context.Context, entry ledger.AuditEntry) error {
	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	query := `
		INSERT INTO audit_log (id, entity, entity_id, action, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`
	_, err = r.q.Exec(ctx, query,
		uuid.New().String(), entry.Entity, entry.EntityID, entry.Action, entry.Actor, string(data))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
