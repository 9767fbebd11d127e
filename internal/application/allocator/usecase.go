package allocator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/analyzer"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/dto"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/ledger"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
	"github.com/progprogect/erp-shvedoff-sub000/pkg/logger"
)

// StockAllocator reparte stock recién recibido entre las líneas de pedido en
// espera, por orden de prioridad determinista. Cada reserva es un paso
// confirmado por separado: si un paso posterior falla, los anteriores quedan
// en pie (no hay rollback del reparto completo).
type StockAllocator struct {
	stockLedger *ledger.StockLedger
	orderRepo   repository.OrderRepository
	analyzer    *analyzer.AvailabilityAnalyzer
	notifier    ledger.Notifier
	log         *logger.Logger
}

// NewStockAllocator construye el asignador. notifier puede ser nil.
func NewStockAllocator(
	stockLedger *ledger.StockLedger,
	orderRepo repository.OrderRepository,
	availability *analyzer.AvailabilityAnalyzer,
	notifier ledger.Notifier,
	log *logger.Logger,
) *StockAllocator {
	return &StockAllocator{
		stockLedger: stockLedger,
		orderRepo:   orderRepo,
		analyzer:    availability,
		notifier:    notifier,
		log:         log,
	}
}

// AsPostCommitHook adapta el asignador como hook post-commit del libro:
// cada entrada de mercancía confirmada dispara el reparto de esa cantidad.
func (a *StockAllocator) AsPostCommitHook() ledger.PostCommitHook {
	return func(ctx context.Context, ev ledger.MovementEvent) error {
		if ev.Kind != entity.MovementKindIncoming {
			return nil
		}
		_, err := a.Distribute(ctx, ev.ProductID, ev.Quantity, ev.Actor)
		return err
	}
}

// Distribute recorre las líneas en espera del producto en orden de prioridad y
// reserva greedy min(pendiente, restante) para cada una hasta agotar la entrada.
// El remanente sin asignar queda disponible en el libro.
//
// Orden total fijo: fecha de entrega ascendente (sin fecha al final), luego
// prioridad descendente (urgent > high > normal > low), luego antigüedad del pedido.
func (a *StockAllocator) Distribute(ctx context.Context, productID string, incomingQty decimal.Decimal, actor string) (*dto.DistributionResultDTO, error) {
	if productID == "" || !incomingQty.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}

	waiting, err := a.orderRepo.ListWaitingItemsByProduct(productID)
	if err != nil {
		return nil, err
	}
	sortWaiting(waiting)

	result := &dto.DistributionResultDTO{ProductID: productID, Distributed: decimal.Zero}
	remaining := incomingQty
	touched := map[string]bool{}

	for _, w := range waiting {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		pending := w.Item.PendingQuantity()
		if !pending.GreaterThan(decimal.Zero) {
			continue
		}
		take := decimal.Min(pending, remaining)

		ref := &entity.MovementReference{Kind: entity.ReferenceKindOrder, ID: w.Order.ID}
		if _, err := a.stockLedger.Reserve(ctx, productID, take, ref, actor); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				// Otro actor consumió el stock entre pasos; no queda nada que repartir.
				a.log.Warn().
					Str("product_id", productID).
					Str("order_id", w.Order.ID).
					Msg("reparto interrumpido: stock agotado por una operación concurrente")
				break
			}
			return result, err
		}

		newReserved := w.Item.ReservedQuantity.Add(take)
		if err := a.orderRepo.UpdateItemReserved(w.Item.ID, newReserved); err != nil {
			return result, err
		}

		remaining = remaining.Sub(take)
		result.Distributed = result.Distributed.Add(take)
		if !touched[w.Order.ID] {
			touched[w.Order.ID] = true
			result.AffectedOrderIDs = append(result.AffectedOrderIDs, w.Order.ID)
		}

		if err := a.refreshOrderStatus(ctx, w.Order.ID); err != nil {
			return result, err
		}
	}

	a.log.Info().
		Str("product_id", productID).
		Str("incoming", incomingQty.String()).
		Str("distributed", result.Distributed.String()).
		Int("orders", len(result.AffectedOrderIDs)).
		Msg("stock entrante repartido")
	return result, nil
}

// refreshOrderStatus recalcula el estado del pedido tras una reserva y lo
// persiste si cambió. Los estados fuera de la autoridad del analizador
// (ready, completed, cancelled) no se tocan.
func (a *StockAllocator) refreshOrderStatus(ctx context.Context, orderID string) error {
	order, err := a.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil || !entity.RecomputableStatus(order.Status) {
		return nil
	}
	report, err := a.analyzer.Analyze(ctx, orderID)
	if err != nil {
		return err
	}
	if report.SuggestedStatus == order.Status {
		return nil
	}
	if err := a.orderRepo.UpdateStatus(orderID, report.SuggestedStatus); err != nil {
		return err
	}
	a.notify(ctx, orderID, fmt.Sprintf("pedido %s: estado %s → %s tras asignación de stock", orderID, order.Status, report.SuggestedStatus))
	return nil
}

// notify avisa al colaborador de mensajería; fire-and-forget.
func (a *StockAllocator) notify(ctx context.Context, orderID, text string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(ctx, orderID, text); err != nil {
		a.log.Error().Err(err).Str("order_id", orderID).Msg("notificación no entregada")
	}
}

// sortWaiting aplica el orden total fijo del reparto.
func sortWaiting(items []repository.WaitingItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]

		// Fecha de entrega ascendente; pedidos sin fecha después de todos los fechados.
		switch {
		case a.Order.DeliveryDate != nil && b.Order.DeliveryDate == nil:
			return true
		case a.Order.DeliveryDate == nil && b.Order.DeliveryDate != nil:
			return false
		case a.Order.DeliveryDate != nil && b.Order.DeliveryDate != nil:
			if !a.Order.DeliveryDate.Equal(*b.Order.DeliveryDate) {
				return a.Order.DeliveryDate.Before(*b.Order.DeliveryDate)
			}
		}

		wa, wb := entity.PriorityWeight(a.Order.Priority), entity.PriorityWeight(b.Order.Priority)
		if wa != wb {
			return wa > wb
		}
		return a.Order.CreatedAt.Before(b.Order.CreatedAt)
	})
}
