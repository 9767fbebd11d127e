package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de un pedido. El núcleo solo escribe new, confirmed e in_production;
// ready, completed y cancelled los fija el flujo de despacho, fuera del núcleo.
const (
	OrderStatusNew          = "new"
	OrderStatusConfirmed    = "confirmed"
	OrderStatusInProduction = "in_production"
	OrderStatusReady        = "ready"
	OrderStatusCompleted    = "completed"
	OrderStatusCancelled    = "cancelled"
)

// Prioridades de pedido.
const (
	OrderPriorityLow    = "low"
	OrderPriorityNormal = "normal"
	OrderPriorityHigh   = "high"
	OrderPriorityUrgent = "urgent"
)

// PriorityWeight peso numérico de la prioridad para ordenar (urgent > high > normal > low).
func PriorityWeight(priority string) int {
	switch priority {
	case OrderPriorityUrgent:
		return 4
	case OrderPriorityHigh:
		return 3
	case OrderPriorityNormal:
		return 2
	case OrderPriorityLow:
		return 1
	}
	return 0
}

// Order pedido de venta. Status es un campo derivado: lo recalcula el analizador
// de disponibilidad, salvo las transiciones terminales que llegan de fuera.
type Order struct {
	ID           string
	Status       string
	Priority     string
	DeliveryDate *time.Time
	CreatedAt    time.Time
}

// ActiveStatus indica si el pedido sigue compitiendo por stock.
func ActiveStatus(status string) bool {
	switch status {
	case OrderStatusNew, OrderStatusConfirmed, OrderStatusInProduction:
		return true
	}
	return false
}

// RecomputableStatus indica si el analizador puede sobrescribir el estado.
// ready, completed y cancelled quedan fuera de su autoridad.
func RecomputableStatus(status string) bool {
	return ActiveStatus(status)
}

// OrderItem línea de pedido. ReservedQuantity solo la mutan las operaciones de
// reserva/liberación del ledger y el asignador de stock.
type OrderItem struct {
	ID                string
	OrderID           string
	ProductID         string
	RequestedQuantity decimal.Decimal
	ReservedQuantity  decimal.Decimal
}

// PendingQuantity cantidad solicitada aún sin reservar.
func (i *OrderItem) PendingQuantity() decimal.Decimal {
	pending := i.RequestedQuantity.Sub(i.ReservedQuantity)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}
