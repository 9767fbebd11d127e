package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/ledger"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/infrastructure/memory"
	"github.com/progprogect/erp-shvedoff-sub000/pkg/logger"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type ledgerEnv struct {
	store *memory.Store
	audit *memory.AuditLog
	l     *ledger.StockLedger
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	store := memory.NewStore()
	audit := memory.NewAuditLog()
	l := ledger.NewStockLedger(store, store.StockRepository(), store.MovementRepository(), audit, logger.Nop())
	return &ledgerEnv{store: store, audit: audit, l: l}
}

func (e *ledgerEnv) seed(productID string, current, reserved int64) {
	e.store.PutStock(&entity.StockRecord{
		ProductID:        productID,
		CurrentQuantity:  d(current),
		ReservedQuantity: d(reserved),
	})
}

func (e *ledgerEnv) stockOf(t *testing.T, productID string) *entity.StockRecord {
	t.Helper()
	rec, err := e.store.StockRepository().Get(productID)
	require.NoError(t, err)
	return rec
}

// TestReserve_EscenarioBasico: con 100 en stock, reservar 60 deja disponible 40;
// reservar 50 más falla con stock insuficiente y no toca nada.
func TestReserve_EscenarioBasico(t *testing.T) {
	env := newLedgerEnv(t)
	env.seed("P", 100, 0)
	ctx := context.Background()

	snap, err := env.l.Reserve(ctx, "P", d(60), nil, "tester")
	require.NoError(t, err)
	assert.True(t, snap.ReservedQuantity.Equal(d(60)))
	assert.True(t, snap.AvailableQuantity.Equal(d(40)))

	_, err = env.l.Reserve(ctx, "P", d(50), nil, "tester")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	rec := env.stockOf(t, "P")
	assert.True(t, rec.CurrentQuantity.Equal(d(100)), "el rechazo no debe tocar el stock")
	assert.True(t, rec.ReservedQuantity.Equal(d(60)))
}

func TestReserve_EntradaInvalida(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	_, err := env.l.Reserve(ctx, "", d(5), nil, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.l.Reserve(ctx, "P", decimal.Zero, nil, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.l.Reserve(ctx, "P", d(-3), nil, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.l.Reserve(ctx, "P", d(3), &entity.MovementReference{Kind: "factura", ID: "x"}, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "tipo de referencia fuera de la unión cerrada")
}

func TestRelease_ReservaInsuficiente(t *testing.T) {
	env := newLedgerEnv(t)
	env.seed("P", 50, 0)
	ctx := context.Background()

	_, err := env.l.Reserve(ctx, "P", d(20), nil, "tester")
	require.NoError(t, err)

	_, err = env.l.Release(ctx, "P", d(30), nil, "tester")
	require.ErrorIs(t, err, domain.ErrInsufficientReservation)

	snap, err := env.l.Release(ctx, "P", d(20), nil, "tester")
	require.NoError(t, err)
	assert.True(t, snap.ReservedQuantity.IsZero())
}

// TestReceiveInbound_CreacionPerezosa: referirse a un producto desconocido nunca
// es error; el registro nace en cero y la entrada lo incrementa.
func TestReceiveInbound_CreacionPerezosa(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	snap, err := env.l.ReceiveInbound(ctx, "NUEVO", d(25), nil, "tester")
	require.NoError(t, err)
	assert.True(t, snap.CurrentQuantity.Equal(d(25)))
	assert.True(t, snap.ReservedQuantity.IsZero())

	movs, err := env.store.MovementRepository().ListByProduct("NUEVO", nil, nil)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementKindIncoming, movs[0].Kind)
}

func TestReceiveInbound_DisparaHooks(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	var events []ledger.MovementEvent
	env.l.RegisterHook(func(ctx context.Context, ev ledger.MovementEvent) error {
		events = append(events, ev)
		return nil
	})
	// Un hook que falla se registra y no afecta ni al caller ni a otros hooks.
	env.l.RegisterHook(func(ctx context.Context, ev ledger.MovementEvent) error {
		return errors.New("hook roto")
	})

	_, err := env.l.ReceiveInbound(ctx, "P", d(10), nil, "tester")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entity.MovementKindIncoming, events[0].Kind)
	assert.True(t, events[0].Quantity.Equal(d(10)))
}

func TestCommitOutbound(t *testing.T) {
	env := newLedgerEnv(t)
	env.seed("P", 40, 0)
	ctx := context.Background()

	_, err := env.l.Reserve(ctx, "P", d(30), nil, "tester")
	require.NoError(t, err)

	_, err = env.l.CommitOutbound(ctx, "P", d(35), nil, "tester")
	require.ErrorIs(t, err, domain.ErrInsufficientReservation)

	snap, err := env.l.CommitOutbound(ctx, "P", d(30), nil, "tester")
	require.NoError(t, err)
	assert.True(t, snap.CurrentQuantity.Equal(d(10)))
	assert.True(t, snap.ReservedQuantity.IsZero())
}

// TestAdjust_RecorteDeReserva: un ajuste que deja el stock por debajo de la
// reserva recorta la reserva al nuevo stock y registra un release por el exceso.
func TestAdjust_RecorteDeReserva(t *testing.T) {
	env := newLedgerEnv(t)
	env.seed("P", 100, 0)
	ctx := context.Background()

	_, err := env.l.Reserve(ctx, "P", d(80), nil, "tester")
	require.NoError(t, err)

	snap, err := env.l.Adjust(ctx, "P", d(-50), nil, "tester")
	require.NoError(t, err)
	assert.True(t, snap.CurrentQuantity.Equal(d(50)))
	assert.True(t, snap.ReservedQuantity.Equal(d(50)), "la reserva debe recortarse al nuevo stock")

	movs, err := env.store.MovementRepository().ListByProduct("P", nil, nil)
	require.NoError(t, err)
	var release, adjustment *entity.StockMovement
	for _, m := range movs {
		switch m.Kind {
		case entity.MovementKindRelease:
			release = m
		case entity.MovementKindAdjustment:
			adjustment = m
		}
	}
	require.NotNil(t, adjustment)
	assert.True(t, adjustment.Quantity.Equal(d(-50)))
	require.NotNil(t, release, "el recorte debe registrar un release")
	assert.True(t, release.Quantity.Equal(d(-30)), "release exactamente por reserva_vieja - stock_nuevo")
}

func TestAdjust_DeltaCero(t *testing.T) {
	env := newLedgerEnv(t)
	_, err := env.l.Adjust(context.Background(), "P", decimal.Zero, nil, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCancelMovement_RevierteYElimina(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	_, err := env.l.ReceiveInbound(ctx, "P", d(10), nil, "tester")
	require.NoError(t, err)
	movs, err := env.store.MovementRepository().ListByProduct("P", nil, nil)
	require.NoError(t, err)
	require.Len(t, movs, 1)

	snap, err := env.l.CancelMovement(ctx, movs[0].ID, "operador")
	require.NoError(t, err)
	assert.True(t, snap.CurrentQuantity.IsZero())

	movs, err = env.store.MovementRepository().ListByProduct("P", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, movs, "el movimiento cancelado desaparece del libro")
}

// TestCancelMovement_Conflicto: no se puede deshacer una entrada cuyo stock ya
// está comprometido en una reserva.
func TestCancelMovement_Conflicto(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	_, err := env.l.ReceiveInbound(ctx, "P", d(10), nil, "tester")
	require.NoError(t, err)
	movs, err := env.store.MovementRepository().ListByProduct("P", nil, nil)
	require.NoError(t, err)
	incomingID := movs[0].ID

	_, err = env.l.Reserve(ctx, "P", d(10), nil, "tester")
	require.NoError(t, err)

	_, err = env.l.CancelMovement(ctx, incomingID, "operador")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCancelMovement_NoExiste(t *testing.T) {
	env := newLedgerEnv(t)
	_, err := env.l.CancelMovement(context.Background(), "no-existe", "operador")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestContencion_AgotaReintentos: con la fila bloqueada por "otra transacción",
// la operación reintenta y termina devolviendo ErrLockContention.
func TestContencion_AgotaReintentos(t *testing.T) {
	env := newLedgerEnv(t)
	env.seed("P", 10, 0)
	env.store.LockProduct("P")

	_, err := env.l.Reserve(context.Background(), "P", d(5), nil, "tester")
	assert.ErrorIs(t, err, domain.ErrLockContention)

	env.store.UnlockProduct("P")
	_, err = env.l.Reserve(context.Background(), "P", d(5), nil, "tester")
	assert.NoError(t, err)
}

// TestAuditoriaCaida: el canal de auditoría es mejor esfuerzo; su fallo jamás
// aborta la operación principal.
func TestAuditoriaCaida(t *testing.T) {
	env := newLedgerEnv(t)
	env.seed("P", 10, 0)
	env.audit.Fail = errors.New("audit log caído")

	snap, err := env.l.Reserve(context.Background(), "P", d(5), nil, "tester")
	require.NoError(t, err)
	assert.True(t, snap.ReservedQuantity.Equal(d(5)))
}

func TestAuditoria_RegistraMovimientos(t *testing.T) {
	env := newLedgerEnv(t)
	env.seed("P", 10, 0)

	_, err := env.l.Reserve(context.Background(), "P", d(5), nil, "tester")
	require.NoError(t, err)

	entries := env.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "stock_movement", entries[0].Entity)
	assert.Equal(t, entity.MovementKindReservation, entries[0].Action)
	assert.Equal(t, "tester", entries[0].Actor)
}

// TestExecute_ResultadoTipado: las condiciones de negocio esperadas viajan en
// Result, nunca como error de Go.
func TestExecute_ResultadoTipado(t *testing.T) {
	env := newLedgerEnv(t)
	env.seed("P", 10, 0)
	ctx := context.Background()

	res, err := env.l.Execute(ctx, ledger.Operation{
		Type: ledger.OpReserve, ProductID: "P", Quantity: d(50), Actor: "tester",
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ledger.ErrorKindInsufficientStock, res.ErrorKind)

	res, err = env.l.Execute(ctx, ledger.Operation{
		Type: ledger.OpReserve, ProductID: "P", Quantity: d(5), Actor: "tester",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.NotNil(t, res.Snapshot)
	assert.True(t, res.Snapshot.ReservedQuantity.Equal(d(5)))

	res, err = env.l.Execute(ctx, ledger.Operation{Type: "desconocido"})
	require.NoError(t, err)
	assert.Equal(t, ledger.ErrorKindValidation, res.ErrorKind)
}

// TestRegisterCutting: el corte consume disponible del producto origen y da de
// alta el resultante; cada mitad queda en el libro con su tipo.
func TestRegisterCutting(t *testing.T) {
	env := newLedgerEnv(t)
	env.seed("ROLLO", 100, 0)
	ctx := context.Background()

	snap, err := env.l.RegisterCutting(ctx, "ROLLO", "PIEZA", d(10), d(40),
		&entity.MovementReference{Kind: entity.ReferenceKindCuttingOperation, ID: "corte-1"}, "tester")
	require.NoError(t, err)
	assert.True(t, snap.CurrentQuantity.Equal(d(40)))

	source := env.stockOf(t, "ROLLO")
	assert.True(t, source.CurrentQuantity.Equal(d(90)))

	_, err = env.l.RegisterCutting(ctx, "ROLLO", "PIEZA", d(500), d(1), nil, "tester")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}
