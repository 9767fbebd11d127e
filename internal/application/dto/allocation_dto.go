package dto

import "github.com/shopspring/decimal"

// DistributionResultDTO resultado de repartir una entrada de stock entre pedidos en espera.
type DistributionResultDTO struct {
	ProductID        string
	Distributed      decimal.Decimal
	AffectedOrderIDs []string
}
