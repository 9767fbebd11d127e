package repository

import (
	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
)

// ProductionTaskRepository define el puerto de persistencia de tareas de producción.
type ProductionTaskRepository interface {
	GetByID(id string) (*entity.ProductionTask, error)
	Create(task *entity.ProductionTask) error
	// ListOpenByOrder tareas abiertas (pending/in_progress/paused) ligadas a un pedido.
	ListOpenByOrder(orderID string) ([]*entity.ProductionTask, error)
	// ListOpenByProduct tareas abiertas para un producto, ligadas o no a pedidos.
	ListOpenByProduct(productID string) ([]*entity.ProductionTask, error)
	UpdateQuantity(id string, quantity decimal.Decimal) error
	UpdateStatus(id, status string) error
}
