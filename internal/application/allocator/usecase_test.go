package allocator_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/allocator"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/analyzer"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/ledger"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/infrastructure/memory"
	"github.com/progprogect/erp-shvedoff-sub000/pkg/logger"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type allocEnv struct {
	store    *memory.Store
	ledger   *ledger.StockLedger
	alloc    *allocator.StockAllocator
	notifier *memory.NotificationLog
}

func newAllocEnv(t *testing.T) *allocEnv {
	t.Helper()
	store := memory.NewStore()
	notifier := memory.NewNotificationLog()
	l := ledger.NewStockLedger(store, store.StockRepository(), store.MovementRepository(), nil, logger.Nop())
	availability := analyzer.NewAvailabilityAnalyzer(
		store.OrderRepository(), store.StockRepository(), store.TaskRepository())
	alloc := allocator.NewStockAllocator(l, store.OrderRepository(), availability, notifier, logger.Nop())
	return &allocEnv{store: store, ledger: l, alloc: alloc, notifier: notifier}
}

type orderSpec struct {
	id        string
	priority  string
	delivery  *time.Time
	createdAt time.Time
}

func (e *allocEnv) seedOrder(spec orderSpec, itemID, productID string, requested, reserved int64) {
	if spec.priority == "" {
		spec.priority = entity.OrderPriorityNormal
	}
	e.store.PutOrder(&entity.Order{
		ID:           spec.id,
		Status:       entity.OrderStatusNew,
		Priority:     spec.priority,
		DeliveryDate: spec.delivery,
		CreatedAt:    spec.createdAt,
	})
	e.store.PutItem(&entity.OrderItem{
		ID:                itemID,
		OrderID:           spec.id,
		ProductID:         productID,
		RequestedQuantity: d(requested),
		ReservedQuantity:  d(reserved),
	})
}

func (e *allocEnv) itemReserved(t *testing.T, orderID, itemID string) decimal.Decimal {
	t.Helper()
	items, err := e.store.OrderRepository().ListItems(orderID)
	require.NoError(t, err)
	for _, it := range items {
		if it.ID == itemID {
			return it.ReservedQuantity
		}
	}
	t.Fatalf("línea %s no encontrada en el pedido %s", itemID, orderID)
	return decimal.Zero
}

func dateAt(day int) *time.Time {
	ts := time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC)
	return &ts
}

// TestDistribute_RepartoCompleto: con dos pedidos en espera (faltantes 60 y 80)
// y una entrada de 50, se reparten exactamente 50 en orden de prioridad.
func TestDistribute_RepartoCompleto(t *testing.T) {
	env := newAllocEnv(t)
	base := time.Now()
	env.seedOrder(orderSpec{id: "O1", delivery: dateAt(1), createdAt: base}, "I1", "P", 60, 0)
	env.seedOrder(orderSpec{id: "O2", delivery: dateAt(2), createdAt: base}, "I2", "P", 80, 0)
	env.store.PutStock(&entity.StockRecord{ProductID: "P", CurrentQuantity: d(50)})

	result, err := env.alloc.Distribute(context.Background(), "P", d(50), "almacén")
	require.NoError(t, err)
	assert.True(t, result.Distributed.Equal(d(50)))
	assert.Equal(t, []string{"O1"}, result.AffectedOrderIDs, "el pedido más urgente absorbe toda la entrada")
	assert.True(t, env.itemReserved(t, "O1", "I1").Equal(d(50)))
	assert.True(t, env.itemReserved(t, "O2", "I2").IsZero())
}

// TestDistribute_OrdenPorFechaEntrega: la fecha de entrega manda sobre la
// prioridad; los pedidos sin fecha van al final.
func TestDistribute_OrdenPorFechaEntrega(t *testing.T) {
	env := newAllocEnv(t)
	base := time.Now()
	env.seedOrder(orderSpec{id: "SIN_FECHA", priority: entity.OrderPriorityUrgent, createdAt: base}, "I1", "P", 10, 0)
	env.seedOrder(orderSpec{id: "TARDE", delivery: dateAt(20), createdAt: base}, "I2", "P", 10, 0)
	env.seedOrder(orderSpec{id: "PRONTO", delivery: dateAt(5), createdAt: base}, "I3", "P", 10, 0)
	env.store.PutStock(&entity.StockRecord{ProductID: "P", CurrentQuantity: d(25)})

	result, err := env.alloc.Distribute(context.Background(), "P", d(25), "almacén")
	require.NoError(t, err)
	assert.Equal(t, []string{"PRONTO", "TARDE", "SIN_FECHA"}, result.AffectedOrderIDs)
	assert.True(t, env.itemReserved(t, "PRONTO", "I3").Equal(d(10)))
	assert.True(t, env.itemReserved(t, "TARDE", "I2").Equal(d(10)))
	assert.True(t, env.itemReserved(t, "SIN_FECHA", "I1").Equal(d(5)), "al último solo le queda el resto")
}

// TestDistribute_DesempatePorPrioridadYAntiguedad: a igualdad de fecha decide la
// prioridad; a igualdad de prioridad, el pedido más antiguo.
func TestDistribute_DesempatePorPrioridadYAntiguedad(t *testing.T) {
	env := newAllocEnv(t)
	base := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	env.seedOrder(orderSpec{id: "NORMAL_VIEJO", delivery: dateAt(10), createdAt: base}, "I1", "P", 10, 0)
	env.seedOrder(orderSpec{id: "NORMAL_NUEVO", delivery: dateAt(10), createdAt: base.Add(time.Hour)}, "I2", "P", 10, 0)
	env.seedOrder(orderSpec{id: "URGENTE", priority: entity.OrderPriorityUrgent, delivery: dateAt(10), createdAt: base.Add(2 * time.Hour)}, "I3", "P", 10, 0)
	env.store.PutStock(&entity.StockRecord{ProductID: "P", CurrentQuantity: d(30)})

	result, err := env.alloc.Distribute(context.Background(), "P", d(30), "almacén")
	require.NoError(t, err)
	assert.Equal(t, []string{"URGENTE", "NORMAL_VIEJO", "NORMAL_NUEVO"}, result.AffectedOrderIDs)
}

// TestDistribute_RemanenteQuedaDisponible: cubiertos todos los faltantes, el
// resto de la entrada no se reserva.
func TestDistribute_RemanenteQuedaDisponible(t *testing.T) {
	env := newAllocEnv(t)
	env.seedOrder(orderSpec{id: "O1", createdAt: time.Now()}, "I1", "P", 30, 0)
	env.store.PutStock(&entity.StockRecord{ProductID: "P", CurrentQuantity: d(100)})

	result, err := env.alloc.Distribute(context.Background(), "P", d(100), "almacén")
	require.NoError(t, err)
	assert.True(t, result.Distributed.Equal(d(30)))

	stock, err := env.store.StockRepository().Get("P")
	require.NoError(t, err)
	assert.True(t, stock.AvailableQuantity().Equal(d(70)))
}

// TestDistribute_ActualizaEstadoYNotifica: la línea satisfecha por completo
// lleva el pedido a confirmed y deja constancia en mensajería.
func TestDistribute_ActualizaEstadoYNotifica(t *testing.T) {
	env := newAllocEnv(t)
	env.seedOrder(orderSpec{id: "O1", createdAt: time.Now()}, "I1", "P", 20, 0)
	env.store.PutStock(&entity.StockRecord{ProductID: "P", CurrentQuantity: d(20)})

	_, err := env.alloc.Distribute(context.Background(), "P", d(20), "almacén")
	require.NoError(t, err)

	order, err := env.store.OrderRepository().GetByID("O1")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusConfirmed, order.Status)
	assert.NotEmpty(t, env.notifier.Messages("O1"))
}

// TestDistribute_PedidosInactivosFuera: los pedidos cancelados o despachados no
// compiten por el stock entrante.
func TestDistribute_PedidosInactivosFuera(t *testing.T) {
	env := newAllocEnv(t)
	env.seedOrder(orderSpec{id: "ACTIVO", delivery: dateAt(10), createdAt: time.Now()}, "I1", "P", 10, 0)
	env.store.PutOrder(&entity.Order{
		ID: "CANCELADO", Status: entity.OrderStatusCancelled,
		Priority: entity.OrderPriorityUrgent, DeliveryDate: dateAt(1), CreatedAt: time.Now(),
	})
	env.store.PutItem(&entity.OrderItem{
		ID: "I2", OrderID: "CANCELADO", ProductID: "P", RequestedQuantity: d(10),
	})
	env.store.PutStock(&entity.StockRecord{ProductID: "P", CurrentQuantity: d(10)})

	result, err := env.alloc.Distribute(context.Background(), "P", d(10), "almacén")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACTIVO"}, result.AffectedOrderIDs)
}

// TestDistribute_EntradaDisparaReparto: registrado como hook post-commit, una
// entrada de mercancía reparte sola, con la reserva referida al pedido.
func TestDistribute_EntradaDisparaReparto(t *testing.T) {
	env := newAllocEnv(t)
	env.seedOrder(orderSpec{id: "O1", createdAt: time.Now()}, "I1", "P", 40, 0)
	env.ledger.RegisterHook(env.alloc.AsPostCommitHook())

	_, err := env.ledger.ReceiveInbound(context.Background(), "P", d(25), nil, "almacén")
	require.NoError(t, err)

	assert.True(t, env.itemReserved(t, "O1", "I1").Equal(d(25)))

	movs, err := env.store.MovementRepository().ListByProduct("P", nil, nil)
	require.NoError(t, err)
	require.Len(t, movs, 2)
	var reservation *entity.StockMovement
	for _, m := range movs {
		if m.Kind == entity.MovementKindReservation {
			reservation = m
		}
	}
	require.NotNil(t, reservation)
	require.NotNil(t, reservation.Reference)
	assert.Equal(t, entity.ReferenceKindOrder, reservation.Reference.Kind)
	assert.Equal(t, "O1", reservation.Reference.ID)
}

// TestDistribute_StockAgotadoPorConcurrencia: si el disponible real es menor que
// la entrada anunciada, el reparto se corta sin error y lo asignado queda en pie.
func TestDistribute_StockAgotadoPorConcurrencia(t *testing.T) {
	env := newAllocEnv(t)
	base := time.Now()
	env.seedOrder(orderSpec{id: "O1", delivery: dateAt(1), createdAt: base}, "I1", "P", 10, 0)
	env.seedOrder(orderSpec{id: "O2", delivery: dateAt(2), createdAt: base}, "I2", "P", 10, 0)
	env.store.PutStock(&entity.StockRecord{ProductID: "P", CurrentQuantity: d(10)})

	result, err := env.alloc.Distribute(context.Background(), "P", d(20), "almacén")
	require.NoError(t, err)
	assert.True(t, result.Distributed.Equal(d(10)))
	assert.Equal(t, []string{"O1"}, result.AffectedOrderIDs)
}

func TestDistribute_EntradaInvalida(t *testing.T) {
	env := newAllocEnv(t)
	_, err := env.alloc.Distribute(context.Background(), "", d(5), "almacén")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = env.alloc.Distribute(context.Background(), "P", decimal.Zero, "almacén")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
