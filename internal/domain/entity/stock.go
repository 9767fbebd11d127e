package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord representa el stock materializado de un producto (proyección del libro de movimientos).
// Invariantes tras cada operación confirmada:
//   - CurrentQuantity >= 0
//   - ReservedQuantity >= 0
//   - ReservedQuantity <= CurrentQuantity
type StockRecord struct {
	ProductID        string
	CurrentQuantity  decimal.Decimal
	ReservedQuantity decimal.Decimal
	UpdatedAt        time.Time
}

// AvailableQuantity cantidad disponible (actual - reservada). Siempre derivada, nunca almacenada.
func (s *StockRecord) AvailableQuantity() decimal.Decimal {
	return s.CurrentQuantity.Sub(s.ReservedQuantity)
}

// Consistent verifica las dos invariantes del registro.
func (s *StockRecord) Consistent() bool {
	if s.CurrentQuantity.IsNegative() || s.ReservedQuantity.IsNegative() {
		return false
	}
	return !s.ReservedQuantity.GreaterThan(s.CurrentQuantity)
}
