package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene el registro de stock de un producto. Si no existe devuelve el
// registro perezoso en cero: referirse a un producto nuevo nunca es un error.
func (r *StockRepo) Get(productID string) (*entity.StockRecord, error) {
	query := `
		SELECT product_id, current_quantity, reserved_quantity, updated_at
		FROM stock_records WHERE product_id = $1`
	var s entity.StockRecord
	err := r.q.QueryRow(context.Background(), query, productID).Scan(
		&s.ProductID, &s.CurrentQuantity, &s.ReservedQuantity, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zeroRecord(productID), nil
		}
		return nil, fmt.Errorf("get stock record: %w", err)
	}
	return &s, nil
}

// GetForUpdate obtiene el registro bloqueando la fila (SELECT FOR UPDATE NOWAIT).
// Si otra transacción tiene la fila, devuelve domain.ErrLockContention para que
// el caller reintente con backoff. Si la fila no existe aún, la inserta en cero
// dentro de la misma transacción para tener algo que bloquear.
func (r *StockRepo) GetForUpdate(productID string) (*entity.StockRecord, error) {
	query := `
		SELECT product_id, current_quantity, reserved_quantity, updated_at
		FROM stock_records WHERE product_id = $1
		FOR UPDATE NOWAIT`
	var s entity.StockRecord
	err := r.q.QueryRow(context.Background(), query, productID).Scan(
		&s.ProductID, &s.CurrentQuantity, &s.ReservedQuantity, &s.UpdatedAt,
	)
	if err == nil {
		return &s, nil
	}
	if isLockNotAvailable(err) {
		return nil, domain.ErrLockContention
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get stock record for update: %w", err)
	}

	// Creación perezosa: insertar la fila en cero y bloquearla. Si otro worker
	// la insertó en paralelo, el ON CONFLICT no hace nada y el re-select bloquea.
	insert := `
		INSERT INTO stock_records (product_id, current_quantity, reserved_quantity, updated_at)
		VALUES ($1, 0, 0, now())
		ON CONFLICT (product_id) DO NOTHING`
	if _, err := r.q.Exec(context.Background(), insert, productID); err != nil {
		return nil, fmt.Errorf("init stock record: %w", err)
	}
	err = r.q.QueryRow(context.Background(), query, productID).Scan(
		&s.ProductID, &s.CurrentQuantity, &s.ReservedQuantity, &s.UpdatedAt,
	)
	if err != nil {
		if isLockNotAvailable(err) {
			return nil, domain.ErrLockContention
		}
		return nil, fmt.Errorf("get stock record for update: %w", err)
	}
	return &s, nil
}

// Upsert inserta o actualiza las cantidades del registro de stock.
func (r *StockRepo) Upsert(record *entity.StockRecord) error {
	query := `
		INSERT INTO stock_records (product_id, current_quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (product_id)
		DO UPDATE SET current_quantity = EXCLUDED.current_quantity,
		              reserved_quantity = EXCLUDED.reserved_quantity,
		              updated_at = now()`
	_, err := r.q.Exec(context.Background(), query,
		record.ProductID, record.CurrentQuantity, record.ReservedQuantity)
	if err != nil {
		return fmt.Errorf("upsert stock record: %w", err)
	}
	return nil
}

// ListAll devuelve todos los registros de stock (barridos de validación/corrección).
func (r *StockRepo) ListAll() ([]*entity.StockRecord, error) {
	query := `
		SELECT product_id, current_quantity, reserved_quantity, updated_at
		FROM stock_records ORDER BY product_id`
	rows, err := r.q.Query(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("list stock records: %w", err)
	}
	defer rows.Close()

	var out []*entity.StockRecord
	for rows.Next() {
		var s entity.StockRecord
		if err := rows.Scan(&s.ProductID, &s.CurrentQuantity, &s.ReservedQuantity, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock record: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func zeroRecord(productID string) *entity.StockRecord {
	return &entity.StockRecord{
		ProductID:        productID,
		CurrentQuantity:  decimal.Zero,
		ReservedQuantity: decimal.Zero,
	}
}
