package repository

import (
	"time"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
)

// StockMovementRepository define el puerto de persistencia del libro de movimientos (DIP).
// Los movimientos nunca se editan; Delete existe solo para la operación de
// mantenimiento "cancelar movimiento".
type StockMovementRepository interface {
	Create(movement *entity.StockMovement) error
	GetByID(id string) (*entity.StockMovement, error)
	ListByProduct(productID string, from, to *time.Time) ([]*entity.StockMovement, error)
	Delete(id string) error
}
