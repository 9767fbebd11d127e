package dto

import "github.com/shopspring/decimal"

// StockSnapshotDTO foto del stock de un producto tras una operación confirmada.
type StockSnapshotDTO struct {
	ProductID         string
	CurrentQuantity   decimal.Decimal
	ReservedQuantity  decimal.Decimal
	AvailableQuantity decimal.Decimal
}

// Reglas de integridad verificables sobre un registro de stock.
const (
	RuleNonNegativeCurrent  = "current_quantity_non_negative"
	RuleNonNegativeReserved = "reserved_quantity_non_negative"
	RuleReservedWithinStock = "reserved_within_current"
	RuleMovementSumMatches  = "movement_sum_matches_current"
	RuleReservedSumMatches  = "movement_sum_matches_reserved"
)

// StockViolationDTO una violación de integridad detectada por validate/fix.
type StockViolationDTO struct {
	ProductID        string
	Rule             string
	CurrentQuantity  decimal.Decimal
	ReservedQuantity decimal.Decimal
	Expected         decimal.Decimal
	Detail           string
}
