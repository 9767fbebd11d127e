package memory

import (
	"context"
	"sync"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/ledger"
)

// Verify interface compliance.
var (
	_ ledger.AuditSink = (*AuditLog)(nil)
	_ ledger.Notifier  = (*NotificationLog)(nil)
)

// AuditLog sumidero de auditoría en memoria. Con Fail activo simula un canal
// caído, para probar que el libro nunca aborta por un fallo de auditoría.
type AuditLog struct {
	mu      sync.Mutex
	entries []ledger.AuditEntry
	Fail    error
}

// NewAuditLog crea un sumidero vacío.
func NewAuditLog() *AuditLog { return &AuditLog{} }

func (a *AuditLog) Append(ctx context.Context, entry ledger.AuditEntry) error {
	if a.Fail != nil {
		return a.Fail
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

// Entries copia de las entradas registradas.
func (a *AuditLog) Entries() []ledger.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ledger.AuditEntry{}, a.entries...)
}

// NotificationLog colaborador de mensajería en memoria.
type NotificationLog struct {
	mu       sync.Mutex
	messages map[string][]string
}

// NewNotificationLog crea un registro de notificaciones vacío.
func NewNotificationLog() *NotificationLog {
	return &NotificationLog{messages: map[string][]string{}}
}

func (n *NotificationLog) Notify(ctx context.Context, orderID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[orderID] = append(n.messages[orderID], text)
	return nil
}

// Messages notificaciones acumuladas para un pedido.
func (n *NotificationLog) Messages(orderID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.messages[orderID]...)
}
