package memory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
)

// Vistas "pool" del almacén: mismas interfaces que los adaptadores PostgreSQL,
// serializadas con el mutex global.

// Verify interface compliance.
var (
	_ repository.StockRepository          = (*StockRepo)(nil)
	_ repository.StockMovementRepository  = (*MovementRepo)(nil)
	_ repository.OrderRepository          = (*OrderRepo)(nil)
	_ repository.ProductionTaskRepository = (*TaskRepo)(nil)
)

// StockRepository vista de solo-lectura/escritura directa del stock.
func (s *Store) StockRepository() *StockRepo { return &StockRepo{s} }

// MovementRepository vista directa del libro de movimientos.
func (s *Store) MovementRepository() *MovementRepo { return &MovementRepo{s} }

// OrderRepository vista directa de pedidos y líneas.
func (s *Store) OrderRepository() *OrderRepo { return &OrderRepo{s} }

// TaskRepository vista directa de tareas de producción.
func (s *Store) TaskRepository() *TaskRepo { return &TaskRepo{s} }

type StockRepo struct{ s *Store }

func (r *StockRepo) Get(productID string) (*entity.StockRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec, ok := r.s.stocks[productID]; ok {
		cp := *rec
		return &cp, nil
	}
	return &entity.StockRecord{
		ProductID:        productID,
		CurrentQuantity:  decimal.Zero,
		ReservedQuantity: decimal.Zero,
	}, nil
}

func (r *StockRepo) GetForUpdate(productID string) (*entity.StockRecord, error) {
	r.s.mu.Lock()
	locked := r.s.locked[productID]
	r.s.mu.Unlock()
	if locked {
		return nil, domain.ErrLockContention
	}
	return r.Get(productID)
}

func (r *StockRepo) Upsert(record *entity.StockRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *record
	r.s.stocks[record.ProductID] = &cp
	return nil
}

func (r *StockRepo) ListAll() ([]*entity.StockRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.StockRecord
	for _, rec := range r.s.stocks {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

type MovementRepo struct{ s *Store }

func (r *MovementRepo) Create(movement *entity.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *movement
	r.s.movements = append(r.s.movements, &cp)
	return nil
}

func (r *MovementRepo) GetByID(id string) (*entity.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.movements {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MovementRepo) ListByProduct(productID string, from, to *time.Time) ([]*entity.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return filterMovements(r.s.movements, productID, from, to), nil
}

func (r *MovementRepo) Delete(id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.movements[:0]
	for _, m := range r.s.movements {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	r.s.movements = kept
	return nil
}

type OrderRepo struct{ s *Store }

// PutOrder alta directa de un pedido (setup de tests y dry runs).
func (s *Store) PutOrder(order *entity.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *order
	s.orders[order.ID] = &cp
}

// PutItem alta directa de una línea de pedido.
func (s *Store) PutItem(item *entity.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
}

// PutTask alta directa de una tarea de producción.
func (s *Store) PutTask(task *entity.ProductionTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
}

// PutStock alta directa de un registro de stock (estados inconsistentes incluidos,
// para probar validate/fix).
func (s *Store) PutStock(record *entity.StockRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.stocks[record.ProductID] = &cp
}

func (r *OrderRepo) GetByID(id string) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o, ok := r.s.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (r *OrderRepo) ListItems(orderID string) ([]*entity.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.OrderItem
	for _, it := range r.s.items {
		if it.OrderID == orderID {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *OrderRepo) ListWaitingItemsByProduct(productID string) ([]repository.WaitingItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []repository.WaitingItem
	for _, it := range r.s.items {
		if it.ProductID != productID {
			continue
		}
		if !it.RequestedQuantity.GreaterThan(it.ReservedQuantity) {
			continue
		}
		order, ok := r.s.orders[it.OrderID]
		if !ok || !entity.ActiveStatus(order.Status) {
			continue
		}
		out = append(out, repository.WaitingItem{Item: *it, Order: *order})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.ID < out[j].Item.ID })
	return out, nil
}

func (r *OrderRepo) UpdateStatus(orderID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	return nil
}

func (r *OrderRepo) UpdateItemReserved(itemID string, reserved decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[itemID]
	if !ok {
		return domain.ErrNotFound
	}
	it.ReservedQuantity = reserved
	return nil
}

type TaskRepo struct{ s *Store }

func (r *TaskRepo) GetByID(id string) (*entity.ProductionTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *TaskRepo) Create(task *entity.ProductionTask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *task
	r.s.tasks[task.ID] = &cp
	return nil
}

func (r *TaskRepo) ListOpenByOrder(orderID string) ([]*entity.ProductionTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.openTasks(func(t *entity.ProductionTask) bool {
		return t.OrderID != nil && *t.OrderID == orderID
	}), nil
}

func (r *TaskRepo) ListOpenByProduct(productID string) ([]*entity.ProductionTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.openTasks(func(t *entity.ProductionTask) bool {
		return t.ProductID == productID
	}), nil
}

func (r *TaskRepo) UpdateQuantity(id string, quantity decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.RequestedQuantity = quantity
	t.UpdatedAt = time.Now()
	return nil
}

func (r *TaskRepo) UpdateStatus(id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !entity.CanTransitionTask(t.Status, status) {
		return domain.ErrConflict
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (s *Store) openTasks(match func(*entity.ProductionTask) bool) []*entity.ProductionTask {
	var out []*entity.ProductionTask
	for _, t := range s.tasks {
		if entity.OpenTaskStatus(t.Status) && match(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
