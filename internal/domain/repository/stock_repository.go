package repository

import "github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"

// StockRepository define el puerto para consultar/actualizar el stock por producto.
// Usado dentro de transacciones para garantizar consistencia.
type StockRepository interface {
	Get(productID string) (*entity.StockRecord, error)
	Upsert(record *entity.StockRecord) error
	// GetForUpdate bloquea la fila del producto (SELECT FOR UPDATE NOWAIT).
	// Devuelve domain.ErrLockContention si otra transacción la tiene bloqueada.
	GetForUpdate(productID string) (*entity.StockRecord, error)
	ListAll() ([]*entity.StockRecord, error)
}
