package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/dto"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
)

// Tipos de operación aceptados por Execute.
const (
	OpReserve        = "reserve"
	OpRelease        = "release"
	OpReceiveInbound = "receive_inbound"
	OpCommitOutbound = "commit_outbound"
	OpAdjust         = "adjust"
)

// Clases de fallo esperadas de negocio, para callers que no quieren comparar errores.
const (
	ErrorKindValidation              = "validation"
	ErrorKindInsufficientStock       = "insufficient_stock"
	ErrorKindInsufficientReservation = "insufficient_reservation"
	ErrorKindLockContention          = "lock_contention"
	ErrorKindNotFound                = "not_found"
	ErrorKindInternal                = "internal"
)

// Operation operación del libro en forma de dato, para ejecutar desde handlers
// o colas sin acoplarse a las firmas concretas.
type Operation struct {
	Type      string
	ProductID string
	Quantity  decimal.Decimal // cantidad positiva; en adjust es el delta con signo
	Reference *entity.MovementReference
	Actor     string
}

// Result resultado tipado: o bien una foto del stock, o bien la clase de fallo.
// Las condiciones de negocio esperadas no se propagan como error de Go.
type Result struct {
	OK        bool
	Snapshot  *dto.StockSnapshotDTO
	ErrorKind string
}

// Execute despacha una Operation a la operación correspondiente del libro.
// Solo los fallos de infraestructura llegan como error; el resto viaja en Result.
func (l *StockLedger) Execute(ctx context.Context, op Operation) (Result, error) {
	var snap *dto.StockSnapshotDTO
	var err error

	switch op.Type {
	case OpReserve:
		snap, err = l.Reserve(ctx, op.ProductID, op.Quantity, op.Reference, op.Actor)
	case OpRelease:
		snap, err = l.Release(ctx, op.ProductID, op.Quantity, op.Reference, op.Actor)
	case OpReceiveInbound:
		snap, err = l.ReceiveInbound(ctx, op.ProductID, op.Quantity, op.Reference, op.Actor)
	case OpCommitOutbound:
		snap, err = l.CommitOutbound(ctx, op.ProductID, op.Quantity, op.Reference, op.Actor)
	case OpAdjust:
		snap, err = l.Adjust(ctx, op.ProductID, op.Quantity, op.Reference, op.Actor)
	default:
		return Result{ErrorKind: ErrorKindValidation}, nil
	}

	if err == nil {
		return Result{OK: true, Snapshot: snap}, nil
	}
	if kind, expected := classify(err); expected {
		return Result{ErrorKind: kind}, nil
	}
	return Result{ErrorKind: ErrorKindInternal}, err
}

// classify separa fallos de negocio esperados de errores de infraestructura.
func classify(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return ErrorKindValidation, true
	case errors.Is(err, domain.ErrInsufficientStock):
		return ErrorKindInsufficientStock, true
	case errors.Is(err, domain.ErrInsufficientReservation):
		return ErrorKindInsufficientReservation, true
	case errors.Is(err, domain.ErrLockContention):
		return ErrorKindLockContention, true
	case errors.Is(err, domain.ErrNotFound):
		return ErrorKindNotFound, true
	}
	return ErrorKindInternal, false
}
