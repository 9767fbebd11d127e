package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo implementación de OrderRepository sobre PostgreSQL (usable con pool o tx).
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador de pedidos. Pasar pool o tx (Querier).
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

// GetByID obtiene un pedido; nil sin error si no existe.
func (r *OrderRepo) GetByID(id string) (*entity.Order, error) {
	query := `
		SELECT id, status, priority, delivery_date, created_at
		FROM orders WHERE id = $1`
	var o entity.Order
	err := r.q.QueryRow(context.Background(), query, id).Scan(
		&o.ID, &o.Status, &o.Priority, &o.DeliveryDate, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// ListItems devuelve las líneas del pedido.
func (r *OrderRepo) ListItems(orderID string) ([]*entity.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, requested_quantity, reserved_quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := r.q.Query(context.Background(), query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var out []*entity.OrderItem
	for rows.Next() {
		var it entity.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.RequestedQuantity, &it.ReservedQuantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

// ListWaitingItemsByProduct líneas con cantidad pendiente de pedidos activos,
// con su cabecera. El orden de reparto lo decide el asignador, no el SQL.
func (r *OrderRepo) ListWaitingItemsByProduct(productID string) ([]repository.WaitingItem, error) {
	query := `
		SELECT i.id, i.order_id, i.product_id, i.requested_quantity, i.reserved_quantity,
		       o.id, o.status, o.priority, o.delivery_date, o.created_at
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE i.product_id = $1
		  AND i.requested_quantity > i.reserved_quantity
		  AND o.status IN ('new', 'confirmed', 'in_production')`
	rows, err := r.q.Query(context.Background(), query, productID)
	if err != nil {
		return nil, fmt.Errorf("list waiting items: %w", err)
	}
	defer rows.Close()

	var out []repository.WaitingItem
	for rows.Next() {
		var w repository.WaitingItem
		err := rows.Scan(
			&w.Item.ID, &w.Item.OrderID, &w.Item.ProductID, &w.Item.RequestedQuantity, &w.Item.ReservedQuantity,
			&w.Order.ID, &w.Order.Status, &w.Order.Priority, &w.Order.DeliveryDate, &w.Order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan waiting item: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpdateStatus persiste el estado derivado del pedido.
func (r *OrderRepo) UpdateStatus(orderID, status string) error {
	_, err := r.q.Exec(context.Background(),
		`UPDATE orders SET status = $2 WHERE id = $1`, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// UpdateItemReserved persiste la cantidad reservada de una línea.
func (r *OrderRepo) UpdateItemReserved(itemID string, reserved decimal.Decimal) error {
	_, err := r.q.Exec(context.Background(),
		`UPDATE order_items SET reserved_quantity = $2 WHERE id = $1`, itemID, reserved)
	if err != nil {
		return fmt.Errorf("update item reserved: %w", err)
	}
	return nil
}
