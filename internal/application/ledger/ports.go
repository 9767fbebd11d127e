package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/dto"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios
// atados a esa tx. La serialización por producto la da el SELECT FOR UPDATE NOWAIT
// dentro de la transacción, no el runner.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		movRepo repository.StockMovementRepository,
	) error) error
}

// AuditEntry entrada del canal lateral de auditoría.
type AuditEntry struct {
	Entity   string
	EntityID string
	Action   string
	Actor    string
	Payload  map[string]any
}

// AuditSink destino append-only de auditoría. Mejor esfuerzo: un fallo aquí se
// registra en el log pero jamás aborta la operación principal.
type AuditSink interface {
	Append(ctx context.Context, entry AuditEntry) error
}

// Notifier colaborador de mensajería. Fire-and-forget: el fallo no es fatal.
type Notifier interface {
	Notify(ctx context.Context, orderID, text string) error
}

// MovementEvent resumen de un movimiento ya confirmado, entregado a los hooks post-commit.
type MovementEvent struct {
	ProductID string
	Kind      string
	Quantity  decimal.Decimal
	Reference *entity.MovementReference
	Actor     string
	Snapshot  dto.StockSnapshotDTO
}

// PostCommitHook se ejecuta tras el commit de la transacción principal.
// Su error se captura y se registra, nunca se propaga al caller.
type PostCommitHook func(ctx context.Context, ev MovementEvent) error
