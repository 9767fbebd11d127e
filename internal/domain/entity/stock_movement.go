package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/domain"
)

// Tipos de movimiento del libro de stock.
const (
	MovementKindIncoming    = "incoming"    // entrada de mercancía
	MovementKindOutgoing    = "outgoing"    // salida comprometida (descuenta actual y reservado)
	MovementKindReservation = "reservation" // reserva contra stock actual
	MovementKindRelease     = "release"     // liberación de reserva
	MovementKindAdjustment  = "adjustment"  // ajuste manual (+/-)
	MovementKindCuttingIn   = "cutting_in"  // producto resultante de una operación de corte
	MovementKindCuttingOut  = "cutting_out" // producto consumido por una operación de corte
)

// Tipos de referencia admitidos en un movimiento (unión cerrada, validada en el ledger).
const (
	ReferenceKindOrder            = "order"
	ReferenceKindProductionTask   = "production_task"
	ReferenceKindShipment         = "shipment"
	ReferenceKindAdjustmentNote   = "adjustment_note"
	ReferenceKindCuttingOperation = "cutting_operation"
)

// MovementReference vincula un movimiento con la entidad que lo originó.
type MovementReference struct {
	Kind string
	ID   string
}

// Validate verifica que la referencia pertenezca a la unión cerrada de tipos.
func (r MovementReference) Validate() error {
	switch r.Kind {
	case ReferenceKindOrder, ReferenceKindProductionTask, ReferenceKindShipment,
		ReferenceKindAdjustmentNote, ReferenceKindCuttingOperation:
		if r.ID == "" {
			return domain.ErrInvalidInput
		}
		return nil
	}
	return domain.ErrInvalidInput
}

// StockMovement registro inmutable del libro de stock. Se crea, nunca se edita;
// solo la operación de mantenimiento "cancelar movimiento" puede eliminarlo
// revirtiendo su efecto.
//
// Convención de signo: Quantity lleva el signo del efecto principal del tipo
// (outgoing y release negativos, incoming y reservation positivos, adjustment
// con el signo del delta).
type StockMovement struct {
	ID        string
	ProductID string
	Kind      string
	Quantity  decimal.Decimal
	Reference *MovementReference
	Actor     string
	Comment   string
	CreatedAt time.Time
}

// ValidKind indica si el tipo de movimiento pertenece al catálogo cerrado.
func ValidKind(kind string) bool {
	switch kind {
	case MovementKindIncoming, MovementKindOutgoing, MovementKindReservation,
		MovementKindRelease, MovementKindAdjustment, MovementKindCuttingIn, MovementKindCuttingOut:
		return true
	}
	return false
}

// OnHandEffect efecto firmado del movimiento sobre CurrentQuantity.
// La suma de estos efectos desde el origen debe igualar CurrentQuantity.
func (m *StockMovement) OnHandEffect() decimal.Decimal {
	switch m.Kind {
	case MovementKindIncoming, MovementKindOutgoing, MovementKindAdjustment,
		MovementKindCuttingIn, MovementKindCuttingOut:
		return m.Quantity
	}
	return decimal.Zero
}

// ReservedEffect efecto firmado del movimiento sobre ReservedQuantity.
// Una salida comprometida (outgoing) descuenta reserva y stock a la vez.
func (m *StockMovement) ReservedEffect() decimal.Decimal {
	switch m.Kind {
	case MovementKindReservation, MovementKindRelease, MovementKindOutgoing:
		return m.Quantity
	}
	return decimal.Zero
}
