package dto

import "github.com/shopspring/decimal"

// Clasificación de disponibilidad de una línea de pedido.
const (
	ItemAvailable          = "available"
	ItemPartiallyAvailable = "partially_available"
	ItemNeedsProduction    = "needs_production"
)

// ItemAvailabilityDTO disponibilidad calculada de una línea de pedido.
// Available es el stock actual bruto del producto: el analizador razona sobre
// demanda total contra stock total, sin importar quién tiene la reserva.
type ItemAvailabilityDTO struct {
	OrderItemID    string
	ProductID      string
	Required       decimal.Decimal
	Available      decimal.Decimal
	InProduction   decimal.Decimal
	Shortage       decimal.Decimal
	Classification string
}

// AvailabilityReportDTO resultado puro e idempotente del análisis de un pedido.
// El analizador nunca escribe; el caller decide si persiste SuggestedStatus.
type AvailabilityReportDTO struct {
	OrderID                 string
	SuggestedStatus         string
	Items                   []ItemAvailabilityDTO
	ShouldSuggestProduction bool
}
