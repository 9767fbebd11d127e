package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/ledger"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
)

// Store implementación en memoria de los puertos del núcleo. Un mutex global
// serializa las transacciones (suficiente para tests y dry runs del CLI); la
// contención por producto se puede simular con LockProduct.
type Store struct {
	mu        sync.Mutex
	stocks    map[string]*entity.StockRecord
	movements []*entity.StockMovement
	orders    map[string]*entity.Order
	items     map[string]*entity.OrderItem
	tasks     map[string]*entity.ProductionTask
	locked    map[string]bool
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		stocks: map[string]*entity.StockRecord{},
		orders: map[string]*entity.Order{},
		items:  map[string]*entity.OrderItem{},
		tasks:  map[string]*entity.ProductionTask{},
		locked: map[string]bool{},
	}
}

// Verify interface compliance.
var _ ledger.TxRunner = (*Store)(nil)

// LockProduct simula otra transacción sosteniendo la fila del producto:
// GetForUpdate devolverá ErrLockContention hasta UnlockProduct.
func (s *Store) LockProduct(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked[productID] = true
}

// UnlockProduct libera la fila simulada.
func (s *Store) UnlockProduct(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locked, productID)
}

// Run ejecuta fn como una transacción: los cambios de stock y movimientos se
// preparan sobre copias y solo se aplican si fn no devuelve error.
func (s *Store) Run(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	movRepo repository.StockMovementRepository,
) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{
		store:  s,
		stocks: map[string]*entity.StockRecord{},
	}
	if err := fn(&txStockRepo{tx}, &txMovementRepo{tx}); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// storeTx cambios preparados de una transacción en curso.
type storeTx struct {
	store    *Store
	stocks   map[string]*entity.StockRecord
	appended []*entity.StockMovement
	deleted  map[string]bool
}

func (tx *storeTx) commit() {
	for id, rec := range tx.stocks {
		tx.store.stocks[id] = rec
	}
	tx.store.movements = append(tx.store.movements, tx.appended...)
	if len(tx.deleted) > 0 {
		kept := tx.store.movements[:0]
		for _, m := range tx.store.movements {
			if !tx.deleted[m.ID] {
				kept = append(kept, m)
			}
		}
		tx.store.movements = kept
	}
}

func (tx *storeTx) record(productID string) *entity.StockRecord {
	if rec, ok := tx.stocks[productID]; ok {
		return rec
	}
	if rec, ok := tx.store.stocks[productID]; ok {
		cp := *rec
		tx.stocks[productID] = &cp
		return &cp
	}
	rec := &entity.StockRecord{
		ProductID:        productID,
		CurrentQuantity:  decimal.Zero,
		ReservedQuantity: decimal.Zero,
	}
	tx.stocks[productID] = rec
	return rec
}

// txStockRepo vista de stock atada a la transacción (el mutex global ya está tomado).
type txStockRepo struct{ tx *storeTx }

func (r *txStockRepo) Get(productID string) (*entity.StockRecord, error) {
	cp := *r.tx.record(productID)
	return &cp, nil
}

func (r *txStockRepo) GetForUpdate(productID string) (*entity.StockRecord, error) {
	if r.tx.store.locked[productID] {
		return nil, domain.ErrLockContention
	}
	return r.tx.record(productID), nil
}

func (r *txStockRepo) Upsert(record *entity.StockRecord) error {
	cp := *record
	r.tx.stocks[record.ProductID] = &cp
	return nil
}

func (r *txStockRepo) ListAll() ([]*entity.StockRecord, error) {
	var out []*entity.StockRecord
	for id := range r.tx.store.stocks {
		rec, _ := r.Get(id)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// txMovementRepo vista del libro atada a la transacción.
type txMovementRepo struct{ tx *storeTx }

func (r *txMovementRepo) Create(movement *entity.StockMovement) error {
	cp := *movement
	r.tx.appended = append(r.tx.appended, &cp)
	return nil
}

func (r *txMovementRepo) GetByID(id string) (*entity.StockMovement, error) {
	for _, m := range r.tx.store.movements {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *txMovementRepo) ListByProduct(productID string, from, to *time.Time) ([]*entity.StockMovement, error) {
	return filterMovements(append(append([]*entity.StockMovement{}, r.tx.store.movements...), r.tx.appended...), productID, from, to), nil
}

func (r *txMovementRepo) Delete(id string) error {
	if r.tx.deleted == nil {
		r.tx.deleted = map[string]bool{}
	}
	r.tx.deleted[id] = true
	return nil
}

func filterMovements(all []*entity.StockMovement, productID string, from, to *time.Time) []*entity.StockMovement {
	var out []*entity.StockMovement
	for _, m := range all {
		if m.ProductID != productID {
			continue
		}
		if from != nil && m.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && m.CreatedAt.After(*to) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out
}
