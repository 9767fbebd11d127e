package analyzer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/dto"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
)

// AvailabilityAnalyzer recalcula la disponibilidad de un pedido a partir del
// estado actual de stock y producción. Función pura de los datos: idempotente,
// segura de invocar en cualquier orden y tantas veces como haga falta. Nunca
// escribe; quien la llama persiste el estado sugerido.
type AvailabilityAnalyzer struct {
	orderRepo repository.OrderRepository
	stockRepo repository.StockRepository
	taskRepo  repository.ProductionTaskRepository
}

// NewAvailabilityAnalyzer construye el analizador.
func NewAvailabilityAnalyzer(
	orderRepo repository.OrderRepository,
	stockRepo repository.StockRepository,
	taskRepo repository.ProductionTaskRepository,
) *AvailabilityAnalyzer {
	return &AvailabilityAnalyzer{
		orderRepo: orderRepo,
		stockRepo: stockRepo,
		taskRepo:  taskRepo,
	}
}

// Analyze clasifica cada línea del pedido contra el stock actual bruto (no el
// disponible: el analizador razona sobre demanda total contra stock total,
// independiente de qué pedido tenga ya la reserva) y deriva el estado sugerido.
//
// Derivación del estado, evaluada en este orden:
//  1. todas las líneas disponibles            → confirmed
//  2. alguna línea con producción en curso    → in_production
//  3. resto                                   → new
func (a *AvailabilityAnalyzer) Analyze(ctx context.Context, orderID string) (*dto.AvailabilityReportDTO, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidInput
	}
	order, err := a.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	items, err := a.orderRepo.ListItems(orderID)
	if err != nil {
		return nil, err
	}

	report := &dto.AvailabilityReportDTO{OrderID: orderID}
	allAvailable := true
	anyInProduction := false
	anyShortage := false

	for _, item := range items {
		stock, err := a.stockRepo.Get(item.ProductID)
		if err != nil {
			return nil, err
		}
		inProduction, err := a.openProductionFor(item.ProductID)
		if err != nil {
			return nil, err
		}

		required := item.RequestedQuantity
		available := stock.CurrentQuantity
		shortage := required.Sub(available)
		if shortage.IsNegative() {
			shortage = decimal.Zero
		}

		var class string
		switch {
		case !available.LessThan(required):
			class = dto.ItemAvailable
		case available.GreaterThan(decimal.Zero):
			class = dto.ItemPartiallyAvailable
		default:
			class = dto.ItemNeedsProduction
		}

		if class != dto.ItemAvailable {
			allAvailable = false
			anyShortage = true
		}
		if inProduction.GreaterThan(decimal.Zero) {
			anyInProduction = true
		}

		report.Items = append(report.Items, dto.ItemAvailabilityDTO{
			OrderItemID:    item.ID,
			ProductID:      item.ProductID,
			Required:       required,
			Available:      available,
			InProduction:   inProduction,
			Shortage:       shortage,
			Classification: class,
		})
	}

	switch {
	case allAvailable:
		report.SuggestedStatus = entity.OrderStatusConfirmed
	case anyInProduction:
		report.SuggestedStatus = entity.OrderStatusInProduction
	default:
		report.SuggestedStatus = entity.OrderStatusNew
	}
	report.ShouldSuggestProduction = anyShortage && !anyInProduction

	return report, nil
}

// openProductionFor suma la cantidad solicitada de las tareas abiertas del producto.
func (a *AvailabilityAnalyzer) openProductionFor(productID string) (decimal.Decimal, error) {
	tasks, err := a.taskRepo.ListOpenByProduct(productID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range tasks {
		total = total.Add(t.RequestedQuantity)
	}
	return total, nil
}
