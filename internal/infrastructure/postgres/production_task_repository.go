package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
)

var _ repository.ProductionTaskRepository = (*ProductionTaskRepo)(nil)

// ProductionTaskRepo implementación de ProductionTaskRepository sobre PostgreSQL.
type ProductionTaskRepo struct {
	q Querier
}

// NewProductionTaskRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductionTaskRepository(q Querier) *ProductionTaskRepo {
	return &ProductionTaskRepo{q: q}
}

// GetByID obtiene una tarea; nil sin error si no existe.
func (r *ProductionTaskRepo) GetByID(id string) (*entity.ProductionTask, error) {
	query := taskSelect + ` WHERE id = $1`
	t, err := scanTask(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get production task: %w", err)
	}
	return t, nil
}

// Create persiste una tarea de producción.
func (r *ProductionTaskRepo) Create(task *entity.ProductionTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	query := `
		INSERT INTO production_tasks (id, order_id, product_id, requested_quantity, status, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(context.Background(), query,
		task.ID, task.OrderID, task.ProductID, task.RequestedQuantity,
		task.Status, task.Priority, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create production task: %w", err)
	}
	return nil
}

// ListOpenByOrder tareas abiertas ligadas a un pedido.
func (r *ProductionTaskRepo) ListOpenByOrder(orderID string) ([]*entity.ProductionTask, error) {
	query := taskSelect + `
		WHERE order_id = $1 AND status IN ('pending', 'in_progress', 'paused')
		ORDER BY created_at, id`
	return r.list(query, orderID)
}

// ListOpenByProduct tareas abiertas para un producto (con o sin pedido).
func (r *ProductionTaskRepo) ListOpenByProduct(productID string) ([]*entity.ProductionTask, error) {
	query := taskSelect + `
		WHERE product_id = $1 AND status IN ('pending', 'in_progress', 'paused')
		ORDER BY created_at, id`
	return r.list(query, productID)
}

// UpdateQuantity recorta o amplía la cantidad solicitada de una tarea abierta.
func (r *ProductionTaskRepo) UpdateQuantity(id string, quantity decimal.Decimal) error {
	_, err := r.q.Exec(context.Background(),
		`UPDATE production_tasks SET requested_quantity = $2, updated_at = now() WHERE id = $1`, id, quantity)
	if err != nil {
		return fmt.Errorf("update task quantity: %w", err)
	}
	return nil
}

// UpdateStatus cambia el estado de la tarea.
func (r *ProductionTaskRepo) UpdateStatus(id, status string) error {
	_, err := r.q.Exec(context.Background(),
		`UPDATE production_tasks SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

const taskSelect = `
	SELECT id, order_id, product_id, requested_quantity, status, priority, created_at, updated_at
	FROM production_tasks`

func (r *ProductionTaskRepo) list(query string, arg any) ([]*entity.ProductionTask, error) {
	rows, err := r.q.Query(context.Background(), query, arg)
	if err != nil {
		return nil, fmt.Errorf("list production tasks: %w", err)
	}
	defer rows.Close()

	var out []*entity.ProductionTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan production task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (*entity.ProductionTask, error) {
	var t entity.ProductionTask
	err := row.Scan(&t.ID, &t.OrderID, &t.ProductID, &t.RequestedQuantity,
		&t.Status, &t.Priority, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
