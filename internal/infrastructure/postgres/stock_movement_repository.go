package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo implementación del libro de movimientos sobre PostgreSQL
// (usable con pool o tx).
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Create persiste un movimiento del libro.
func (r *StockMovementRepo) Create(movement *entity.StockMovement) error {
	if movement.ID == "" {
		movement.ID = uuid.New().String()
	}
	var refKind, refID *string
	if movement.Reference != nil {
		refKind = &movement.Reference.Kind
		refID = &movement.Reference.ID
	}
	query := `
		INSERT INTO stock_movements (id, product_id, kind, quantity, reference_kind, reference_id, actor, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(context.Background(), query,
		movement.ID, movement.ProductID, movement.Kind, movement.Quantity,
		refKind, refID, movement.Actor, movement.Comment, movement.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("create stock movement: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID; nil sin error si no existe.
func (r *StockMovementRepo) GetByID(id string) (*entity.StockMovement, error) {
	query := `
		SELECT id, product_id, kind, quantity, reference_kind, reference_id, actor, comment, created_at
		FROM stock_movements WHERE id = $1`
	m, err := scanMovement(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock movement: %w", err)
	}
	return m, nil
}

// ListByProduct devuelve el historial del producto, opcionalmente acotado por fechas.
func (r *StockMovementRepo) ListByProduct(productID string, from, to *time.Time) ([]*entity.StockMovement, error) {
	query := `
		SELECT id, product_id, kind, quantity, reference_kind, reference_id, actor, comment, created_at
		FROM stock_movements
		WHERE product_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at, id`
	rows, err := r.q.Query(context.Background(), query, productID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	var out []*entity.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete elimina un movimiento. Solo lo usa la operación de mantenimiento
// "cancelar movimiento"; el libro es append-only en flujo normal.
func (r *StockMovementRepo) Delete(id string) error {
	_, err := r.q.Exec(context.Background(), `DELETE FROM stock_movements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete stock movement: %w", err)
	}
	return nil
}

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var m entity.StockMovement
	var refKind, refID *string
	err := row.Scan(&m.ID, &m.ProductID, &m.Kind, &m.Quantity, &refKind, &refID, &m.Actor, &m.Comment, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if refKind != nil && refID != nil {
		m.Reference = &entity.MovementReference{Kind: *refKind, ID: *refID}
	}
	return &m, nil
}
