package ledger

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/dto"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
	"github.com/progprogect/erp-shvedoff-sub000/pkg/logger"
)

// Reintentos ante contención de la fila de stock. Las operaciones son cortas
// (update de una fila + append), así que el backoff es breve y con jitter.
const (
	lockRetries     = 3
	lockBackoffBase = 15 * time.Millisecond
)

// StockLedger libro de stock: estado autoritativo de cantidades por producto más
// un movimiento inmutable por cada cambio. Toda mutación corre en una transacción
// con bloqueo de la fila del producto; operaciones sobre productos distintos no
// se bloquean entre sí.
type StockLedger struct {
	txRunner  TxRunner
	stockRepo repository.StockRepository
	movRepo   repository.StockMovementRepository
	audit     AuditSink
	hooks     []PostCommitHook
	log       *logger.Logger
}

// NewStockLedger construye el libro de stock. audit puede ser nil (sin auditoría).
func NewStockLedger(
	txRunner TxRunner,
	stockRepo repository.StockRepository,
	movRepo repository.StockMovementRepository,
	audit AuditSink,
	log *logger.Logger,
) *StockLedger {
	return &StockLedger{
		txRunner:  txRunner,
		stockRepo: stockRepo,
		movRepo:   movRepo,
		audit:     audit,
		log:       log,
	}
}

// RegisterHook añade un hook post-commit (ej: disparar la distribución de stock
// entrante). Se registran en el arranque, antes de servir operaciones.
func (l *StockLedger) RegisterHook(h PostCommitHook) {
	l.hooks = append(l.hooks, h)
}

// Reserve reserva qty unidades contra el stock disponible del producto.
// Falla con ErrInsufficientStock si qty > disponible; el stock queda intacto.
func (l *StockLedger) Reserve(ctx context.Context, productID string, qty decimal.Decimal, ref *entity.MovementReference, actor string) (*dto.StockSnapshotDTO, error) {
	if err := validatePositive(productID, qty, ref); err != nil {
		return nil, err
	}
	return l.mutate(ctx, func(stock *entity.StockRecord) (*entity.StockMovement, error) {
		if qty.GreaterThan(stock.AvailableQuantity()) {
			return nil, domain.ErrInsufficientStock
		}
		stock.ReservedQuantity = stock.ReservedQuantity.Add(qty)
		return newMovement(productID, entity.MovementKindReservation, qty, ref, actor), nil
	}, productID)
}

// Release libera qty unidades reservadas. Falla con ErrInsufficientReservation
// si qty > reservado.
func (l *StockLedger) Release(ctx context.Context, productID string, qty decimal.Decimal, ref *entity.MovementReference, actor string) (*dto.StockSnapshotDTO, error) {
	if err := validatePositive(productID, qty, ref); err != nil {
		return nil, err
	}
	return l.mutate(ctx, func(stock *entity.StockRecord) (*entity.StockMovement, error) {
		if qty.GreaterThan(stock.ReservedQuantity) {
			return nil, domain.ErrInsufficientReservation
		}
		stock.ReservedQuantity = stock.ReservedQuantity.Sub(qty)
		return newMovement(productID, entity.MovementKindRelease, qty.Neg(), ref, actor), nil
	}, productID)
}

// ReceiveInbound registra una entrada de mercancía. Tras el commit, los hooks
// registrados disparan la distribución del stock entrante entre pedidos en espera.
func (l *StockLedger) ReceiveInbound(ctx context.Context, productID string, qty decimal.Decimal, ref *entity.MovementReference, actor string) (*dto.StockSnapshotDTO, error) {
	if err := validatePositive(productID, qty, ref); err != nil {
		return nil, err
	}
	return l.mutate(ctx, func(stock *entity.StockRecord) (*entity.StockMovement, error) {
		stock.CurrentQuantity = stock.CurrentQuantity.Add(qty)
		return newMovement(productID, entity.MovementKindIncoming, qty, ref, actor), nil
	}, productID)
}

// CommitOutbound consuma una salida previamente reservada: descuenta qty del
// stock actual y de la reserva a la vez. Falla con ErrInsufficientReservation
// si qty > reservado.
func (l *StockLedger) CommitOutbound(ctx context.Context, productID string, qty decimal.Decimal, ref *entity.MovementReference, actor string) (*dto.StockSnapshotDTO, error) {
	if err := validatePositive(productID, qty, ref); err != nil {
		return nil, err
	}
	return l.mutate(ctx, func(stock *entity.StockRecord) (*entity.StockMovement, error) {
		if qty.GreaterThan(stock.ReservedQuantity) {
			return nil, domain.ErrInsufficientReservation
		}
		stock.CurrentQuantity = stock.CurrentQuantity.Sub(qty)
		stock.ReservedQuantity = stock.ReservedQuantity.Sub(qty)
		return newMovement(productID, entity.MovementKindOutgoing, qty.Neg(), ref, actor), nil
	}, productID)
}

// Adjust aplica un ajuste manual (delta con signo, distinto de cero) al stock actual.
// Si el nuevo stock queda por debajo de la reserva, la reserva se recorta al nuevo
// stock (piso cero) y se registra un release por el excedente: la corrección del
// ajuste prima sobre la integridad de la reserva.
func (l *StockLedger) Adjust(ctx context.Context, productID string, delta decimal.Decimal, ref *entity.MovementReference, actor string) (*dto.StockSnapshotDTO, error) {
	if productID == "" || delta.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	if ref != nil {
		if err := ref.Validate(); err != nil {
			return nil, err
		}
	}
	var clampMov *entity.StockMovement
	snap, err := l.mutateExtra(ctx, func(stock *entity.StockRecord, movRepo repository.StockMovementRepository) (*entity.StockMovement, error) {
		stock.CurrentQuantity = stock.CurrentQuantity.Add(delta)
		if stock.ReservedQuantity.GreaterThan(stock.CurrentQuantity) {
			clampTo := stock.CurrentQuantity
			if clampTo.IsNegative() {
				clampTo = decimal.Zero
			}
			excess := stock.ReservedQuantity.Sub(clampTo)
			stock.ReservedQuantity = clampTo
			clampMov = newMovement(productID, entity.MovementKindRelease, excess.Neg(), ref, actor)
			if err := movRepo.Create(clampMov); err != nil {
				return nil, err
			}
		}
		return newMovement(productID, entity.MovementKindAdjustment, delta, ref, actor), nil
	}, productID)
	if err != nil {
		return nil, err
	}
	if clampMov != nil {
		l.log.Warn().
			Str("product_id", productID).
			Str("released", clampMov.Quantity.Neg().String()).
			Msg("ajuste por debajo de la reserva: reserva recortada al nuevo stock")
	}
	return snap, nil
}

// RegisterCutting registra una operación de corte: consume stock disponible del
// producto origen (cutting_out) y da de alta el producto resultante (cutting_in).
// Cada mitad corre en su propia transacción por producto; si la segunda falla,
// la primera ya está confirmada y queda reflejada en el libro.
func (l *StockLedger) RegisterCutting(ctx context.Context, sourceProductID, outputProductID string, sourceQty, outputQty decimal.Decimal, ref *entity.MovementReference, actor string) (*dto.StockSnapshotDTO, error) {
	if sourceProductID == "" || outputProductID == "" || sourceProductID == outputProductID {
		return nil, domain.ErrInvalidInput
	}
	if !sourceQty.GreaterThan(decimal.Zero) || !outputQty.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	if ref != nil {
		if err := ref.Validate(); err != nil {
			return nil, err
		}
	}
	_, err := l.mutate(ctx, func(stock *entity.StockRecord) (*entity.StockMovement, error) {
		if sourceQty.GreaterThan(stock.AvailableQuantity()) {
			return nil, domain.ErrInsufficientStock
		}
		stock.CurrentQuantity = stock.CurrentQuantity.Sub(sourceQty)
		return newMovement(sourceProductID, entity.MovementKindCuttingOut, sourceQty.Neg(), ref, actor), nil
	}, sourceProductID)
	if err != nil {
		return nil, err
	}
	return l.mutate(ctx, func(stock *entity.StockRecord) (*entity.StockMovement, error) {
		stock.CurrentQuantity = stock.CurrentQuantity.Add(outputQty)
		return newMovement(outputProductID, entity.MovementKindCuttingIn, outputQty, ref, actor), nil
	}, outputProductID)
}

// CancelMovement operación de mantenimiento: revierte el efecto de un movimiento
// y elimina el registro. Solo para deshacer errores de operador, nunca en flujo
// normal. Falla con ErrConflict si la reversión dejaría el stock inconsistente.
func (l *StockLedger) CancelMovement(ctx context.Context, movementID, actor string) (*dto.StockSnapshotDTO, error) {
	if movementID == "" {
		return nil, domain.ErrInvalidInput
	}
	mov, err := l.movRepo.GetByID(movementID)
	if err != nil {
		return nil, err
	}
	if mov == nil {
		return nil, domain.ErrNotFound
	}

	var snap dto.StockSnapshotDTO
	run := func() error {
		return l.txRunner.Run(ctx, func(stockRepo repository.StockRepository, movRepo repository.StockMovementRepository) error {
			stock, err := stockRepo.GetForUpdate(mov.ProductID)
			if err != nil {
				return err
			}
			stock.CurrentQuantity = stock.CurrentQuantity.Sub(mov.OnHandEffect())
			stock.ReservedQuantity = stock.ReservedQuantity.Sub(mov.ReservedEffect())
			if !stock.Consistent() {
				return domain.ErrConflict
			}
			stock.UpdatedAt = time.Now()
			if err := stockRepo.Upsert(stock); err != nil {
				return err
			}
			if err := movRepo.Delete(mov.ID); err != nil {
				return err
			}
			snap = snapshotOf(stock)
			return nil
		})
	}
	if err := l.retryOnContention(ctx, run); err != nil {
		return nil, err
	}

	l.appendAudit(ctx, AuditEntry{
		Entity:   "stock_movement",
		EntityID: mov.ID,
		Action:   "cancel",
		Actor:    actor,
		Payload: map[string]any{
			"product_id": mov.ProductID,
			"kind":       mov.Kind,
			"quantity":   mov.Quantity.String(),
		},
	})
	return &snap, nil
}

// mutate ejecuta una mutación estándar: bloquea la fila del producto, aplica fn,
// persiste el stock, crea el movimiento devuelto y tras el commit dispara
// auditoría y hooks.
func (l *StockLedger) mutate(ctx context.Context, fn func(stock *entity.StockRecord) (*entity.StockMovement, error), productID string) (*dto.StockSnapshotDTO, error) {
	return l.mutateExtra(ctx, func(stock *entity.StockRecord, _ repository.StockMovementRepository) (*entity.StockMovement, error) {
		return fn(stock)
	}, productID)
}

func (l *StockLedger) mutateExtra(ctx context.Context, fn func(stock *entity.StockRecord, movRepo repository.StockMovementRepository) (*entity.StockMovement, error), productID string) (*dto.StockSnapshotDTO, error) {
	var snap dto.StockSnapshotDTO
	var mov *entity.StockMovement

	run := func() error {
		return l.txRunner.Run(ctx, func(stockRepo repository.StockRepository, movRepo repository.StockMovementRepository) error {
			// Bloquea la fila del producto; el registro se crea perezosamente en cero
			// la primera vez que un producto aparece en el libro.
			stock, err := stockRepo.GetForUpdate(productID)
			if err != nil {
				return err
			}
			mov, err = fn(stock, movRepo)
			if err != nil {
				return err
			}
			stock.UpdatedAt = time.Now()
			if err := stockRepo.Upsert(stock); err != nil {
				return err
			}
			if err := movRepo.Create(mov); err != nil {
				return err
			}
			snap = snapshotOf(stock)
			return nil
		})
	}
	if err := l.retryOnContention(ctx, run); err != nil {
		return nil, err
	}

	ev := MovementEvent{
		ProductID: mov.ProductID,
		Kind:      mov.Kind,
		Quantity:  mov.Quantity,
		Reference: mov.Reference,
		Actor:     mov.Actor,
		Snapshot:  snap,
	}
	l.appendAudit(ctx, AuditEntry{
		Entity:   "stock_movement",
		EntityID: mov.ID,
		Action:   mov.Kind,
		Actor:    mov.Actor,
		Payload: map[string]any{
			"product_id": mov.ProductID,
			"quantity":   mov.Quantity.String(),
			"current":    snap.CurrentQuantity.String(),
			"reserved":   snap.ReservedQuantity.String(),
		},
	})
	l.runHooks(ctx, ev)
	return &snap, nil
}

// retryOnContention reintenta la transacción ante ErrLockContention con un
// backoff corto y jitter; cualquier otro error corta de inmediato.
func (l *StockLedger) retryOnContention(ctx context.Context, run func() error) error {
	var err error
	for attempt := 0; attempt < lockRetries; attempt++ {
		err = run()
		if !errors.Is(err, domain.ErrLockContention) {
			return err
		}
		wait := lockBackoffBase*time.Duration(attempt+1) + time.Duration(rand.Intn(10))*time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// appendAudit escribe en el canal de auditoría; mejor esfuerzo.
func (l *StockLedger) appendAudit(ctx context.Context, entry AuditEntry) {
	if l.audit == nil {
		return
	}
	if err := l.audit.Append(ctx, entry); err != nil {
		l.log.Error().Err(err).
			Str("entity", entry.Entity).
			Str("action", entry.Action).
			Msg("auditoría no disponible; la operación principal ya está confirmada")
	}
}

// runHooks ejecuta los hooks post-commit; el fallo de un hook se registra y no
// afecta ni a los demás hooks ni al caller.
func (l *StockLedger) runHooks(ctx context.Context, ev MovementEvent) {
	for _, h := range l.hooks {
		if err := h(ctx, ev); err != nil {
			l.log.Error().Err(err).
				Str("product_id", ev.ProductID).
				Str("kind", ev.Kind).
				Msg("hook post-commit falló")
		}
	}
}

func validatePositive(productID string, qty decimal.Decimal, ref *entity.MovementReference) error {
	if productID == "" || !qty.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidInput
	}
	if ref != nil {
		return ref.Validate()
	}
	return nil
}

func newMovement(productID, kind string, qty decimal.Decimal, ref *entity.MovementReference, actor string) *entity.StockMovement {
	return &entity.StockMovement{
		ID:        uuid.New().String(),
		ProductID: productID,
		Kind:      kind,
		Quantity:  qty,
		Reference: ref,
		Actor:     actor,
		CreatedAt: time.Now(),
	}
}

func snapshotOf(stock *entity.StockRecord) dto.StockSnapshotDTO {
	return dto.StockSnapshotDTO{
		ProductID:         stock.ProductID,
		CurrentQuantity:   stock.CurrentQuantity,
		ReservedQuantity:  stock.ReservedQuantity,
		AvailableQuantity: stock.AvailableQuantity(),
	}
}
