package repository

import (
	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
)

// WaitingItem línea de pedido con cantidad pendiente de reservar, junto con la
// cabecera del pedido (necesaria para ordenar por fecha de entrega y prioridad).
type WaitingItem struct {
	Item  entity.OrderItem
	Order entity.Order
}

// OrderRepository define el puerto de lectura/escritura sobre pedidos y sus líneas.
// El núcleo solo escribe el estado derivado y la cantidad reservada de las líneas.
type OrderRepository interface {
	GetByID(id string) (*entity.Order, error)
	ListItems(orderID string) ([]*entity.OrderItem, error)
	// ListWaitingItemsByProduct devuelve las líneas con RequestedQuantity > ReservedQuantity
	// de pedidos en estado activo (new, confirmed, in_production), sin ordenar.
	ListWaitingItemsByProduct(productID string) ([]WaitingItem, error)
	UpdateStatus(orderID, status string) error
	UpdateItemReserved(itemID string, reserved decimal.Decimal) error
}
