package reconciler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/analyzer"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/dto"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/ledger"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
	"github.com/progprogect/erp-shvedoff-sub000/pkg/logger"
)

// ProductionReconciler mantiene las tareas de producción ligadas a un pedido en
// sincronía con su déficit residual: crea, recorta o cancela tareas hasta que la
// cantidad planificada abierta iguala el déficit. Idempotente: reconciliar dos
// veces sin cambios intermedios no duplica tareas, porque siempre compara el
// déficit contra lo planificado actualmente abierto, no contra totales históricos.
type ProductionReconciler struct {
	analyzer  *analyzer.AvailabilityAnalyzer
	taskRepo  repository.ProductionTaskRepository
	orderRepo repository.OrderRepository
	notifier  ledger.Notifier
	log       *logger.Logger
}

// NewProductionReconciler construye el reconciliador. notifier puede ser nil.
func NewProductionReconciler(
	availability *analyzer.AvailabilityAnalyzer,
	taskRepo repository.ProductionTaskRepository,
	orderRepo repository.OrderRepository,
	notifier ledger.Notifier,
	log *logger.Logger,
) *ProductionReconciler {
	return &ProductionReconciler{
		analyzer:  availability,
		taskRepo:  taskRepo,
		orderRepo: orderRepo,
		notifier:  notifier,
		log:       log,
	}
}

// Reconcile sincroniza las tareas abiertas del pedido con el déficit de cada línea:
//   - déficit > planificado: crea una tarea por la diferencia;
//   - planificado > déficit: absorbe el excedente empezando por la tarea abierta
//     más grande (cancela las que quepan enteras, recorta la siguiente);
//   - líneas ya sin déficit, o retiradas del pedido: sus tareas abiertas se cancelan.
func (r *ProductionReconciler) Reconcile(ctx context.Context, orderID string) (*dto.ReconcileResultDTO, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidInput
	}
	order, err := r.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}

	report, err := r.analyzer.Analyze(ctx, orderID)
	if err != nil {
		return nil, err
	}
	openTasks, err := r.taskRepo.ListOpenByOrder(orderID)
	if err != nil {
		return nil, err
	}
	byProduct := map[string][]*entity.ProductionTask{}
	for _, t := range openTasks {
		byProduct[t.ProductID] = append(byProduct[t.ProductID], t)
	}

	result := &dto.ReconcileResultDTO{OrderID: orderID}

	for _, item := range report.Items {
		tasks := byProduct[item.ProductID]
		delete(byProduct, item.ProductID)

		planned := decimal.Zero
		for _, t := range tasks {
			planned = planned.Add(t.RequestedQuantity)
		}

		switch {
		case item.Shortage.GreaterThan(planned):
			diff := item.Shortage.Sub(planned)
			if err := r.createTask(order, item.ProductID, diff); err != nil {
				return result, err
			}
			result.Created++
			r.notify(ctx, orderID, fmt.Sprintf("pedido %s: producción solicitada de %s uds del producto %s", orderID, diff, item.ProductID))

		case planned.GreaterThan(item.Shortage):
			shrunk, cancelled, err := r.absorbSurplus(tasks, planned.Sub(item.Shortage))
			if err != nil {
				return result, err
			}
			result.Shrunk += shrunk
			result.Cancelled += cancelled
		}
	}

	// Tareas abiertas de productos que ya no figuran en el pedido.
	for _, tasks := range byProduct {
		for _, t := range tasks {
			if err := r.taskRepo.UpdateStatus(t.ID, entity.TaskStatusCancelled); err != nil {
				return result, err
			}
			result.Cancelled++
		}
	}

	if err := r.refreshOrderStatus(ctx, order); err != nil {
		return result, err
	}

	r.log.Info().
		Str("order_id", orderID).
		Int("created", result.Created).
		Int("shrunk", result.Shrunk).
		Int("cancelled", result.Cancelled).
		Msg("tareas de producción reconciliadas")
	return result, nil
}

// absorbSurplus reduce el excedente planificado empezando por la tarea abierta
// más grande: cancela completas las que quepan en el excedente y recorta la
// siguiente por el resto. Qué tarea sobrevive recortada es comportamiento
// observable; se mantiene esta regla aunque existan heurísticas más finas.
func (r *ProductionReconciler) absorbSurplus(tasks []*entity.ProductionTask, surplus decimal.Decimal) (shrunk, cancelled int, err error) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].RequestedQuantity.GreaterThan(tasks[j].RequestedQuantity)
	})
	for _, t := range tasks {
		if !surplus.GreaterThan(decimal.Zero) {
			break
		}
		if !t.RequestedQuantity.GreaterThan(surplus) {
			if err := r.taskRepo.UpdateStatus(t.ID, entity.TaskStatusCancelled); err != nil {
				return shrunk, cancelled, err
			}
			cancelled++
			surplus = surplus.Sub(t.RequestedQuantity)
			continue
		}
		if err := r.taskRepo.UpdateQuantity(t.ID, t.RequestedQuantity.Sub(surplus)); err != nil {
			return shrunk, cancelled, err
		}
		shrunk++
		surplus = decimal.Zero
	}
	return shrunk, cancelled, nil
}

func (r *ProductionReconciler) createTask(order *entity.Order, productID string, qty decimal.Decimal) error {
	now := time.Now()
	orderID := order.ID
	return r.taskRepo.Create(&entity.ProductionTask{
		ID:                uuid.New().String(),
		OrderID:           &orderID,
		ProductID:         productID,
		RequestedQuantity: qty,
		Status:            entity.TaskStatusPending,
		Priority:          order.Priority,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
}

// refreshOrderStatus vuelve a analizar tras mover tareas y persiste el estado
// sugerido si cambió y sigue bajo la autoridad del analizador.
func (r *ProductionReconciler) refreshOrderStatus(ctx context.Context, order *entity.Order) error {
	if !entity.RecomputableStatus(order.Status) {
		return nil
	}
	report, err := r.analyzer.Analyze(ctx, order.ID)
	if err != nil {
		return err
	}
	if report.SuggestedStatus == order.Status {
		return nil
	}
	if err := r.orderRepo.UpdateStatus(order.ID, report.SuggestedStatus); err != nil {
		return err
	}
	r.notify(ctx, order.ID, fmt.Sprintf("pedido %s: estado %s → %s tras reconciliar producción", order.ID, order.Status, report.SuggestedStatus))
	return nil
}

func (r *ProductionReconciler) notify(ctx context.Context, orderID, text string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, orderID, text); err != nil {
		r.log.Error().Err(err).Str("order_id", orderID).Msg("notificación no entregada")
	}
}
