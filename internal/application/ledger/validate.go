package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/dto"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/entity"
	"github.com/progprogect/erp-shvedoff-sub000/internal/domain/repository"
)

// Validate verifica, sin mutar nada, las invariantes del producto:
// cantidades no negativas, reserva dentro del stock y suma de efectos de los
// movimientos igual al estado materializado.
func (l *StockLedger) Validate(ctx context.Context, productID string) ([]dto.StockViolationDTO, error) {
	stock, err := l.stockRepo.Get(productID)
	if err != nil {
		return nil, err
	}
	movements, err := l.movRepo.ListByProduct(productID, nil, nil)
	if err != nil {
		return nil, err
	}
	return checkRecord(stock, movements), nil
}

// ValidateAll recorre todos los registros de stock y acumula las violaciones.
func (l *StockLedger) ValidateAll(ctx context.Context) ([]dto.StockViolationDTO, error) {
	records, err := l.stockRepo.ListAll()
	if err != nil {
		return nil, err
	}
	var violations []dto.StockViolationDTO
	for _, rec := range records {
		movements, err := l.movRepo.ListByProduct(rec.ProductID, nil, nil)
		if err != nil {
			return nil, err
		}
		violations = append(violations, checkRecord(rec, movements)...)
	}
	return violations, nil
}

// FixInconsistencies operación de mantenimiento, explícita e idempotente:
// recorta cantidades negativas a cero y reservas por encima del stock al stock,
// registrando movimientos correctivos. No inventa historial: los desajustes de
// suma de movimientos solo se reportan, nunca se "reparan".
func (l *StockLedger) FixInconsistencies(ctx context.Context, actor string) ([]dto.StockViolationDTO, error) {
	records, err := l.stockRepo.ListAll()
	if err != nil {
		return nil, err
	}

	var fixed []dto.StockViolationDTO
	for _, rec := range records {
		if rec.Consistent() {
			continue
		}
		productID := rec.ProductID
		var corrections []dto.StockViolationDTO

		run := func() error {
			corrections = corrections[:0]
			return l.txRunner.Run(ctx, func(stockRepo repository.StockRepository, movRepo repository.StockMovementRepository) error {
				stock, err := stockRepo.GetForUpdate(productID)
				if err != nil {
					return err
				}
				if stock.CurrentQuantity.IsNegative() {
					delta := stock.CurrentQuantity.Neg()
					corrections = append(corrections, violation(stock, dto.RuleNonNegativeCurrent, decimal.Zero,
						fmt.Sprintf("stock actual %s recortado a 0", stock.CurrentQuantity)))
					stock.CurrentQuantity = decimal.Zero
					mov := newMovement(productID, entity.MovementKindAdjustment, delta, nil, actor)
					mov.Comment = "corrección de integridad: stock negativo"
					if err := movRepo.Create(mov); err != nil {
						return err
					}
				}
				if stock.ReservedQuantity.IsNegative() {
					delta := stock.ReservedQuantity.Neg()
					corrections = append(corrections, violation(stock, dto.RuleNonNegativeReserved, decimal.Zero,
						fmt.Sprintf("reserva %s recortada a 0", stock.ReservedQuantity)))
					stock.ReservedQuantity = decimal.Zero
					mov := newMovement(productID, entity.MovementKindRelease, delta, nil, actor)
					mov.Comment = "corrección de integridad: reserva negativa"
					if err := movRepo.Create(mov); err != nil {
						return err
					}
				}
				if stock.ReservedQuantity.GreaterThan(stock.CurrentQuantity) {
					excess := stock.ReservedQuantity.Sub(stock.CurrentQuantity)
					corrections = append(corrections, violation(stock, dto.RuleReservedWithinStock, stock.CurrentQuantity,
						fmt.Sprintf("reserva %s recortada al stock %s", stock.ReservedQuantity, stock.CurrentQuantity)))
					stock.ReservedQuantity = stock.CurrentQuantity
					mov := newMovement(productID, entity.MovementKindRelease, excess.Neg(), nil, actor)
					mov.Comment = "corrección de integridad: reserva por encima del stock"
					if err := movRepo.Create(mov); err != nil {
						return err
					}
				}
				if len(corrections) == 0 {
					return nil
				}
				return stockRepo.Upsert(stock)
			})
		}
		if err := l.retryOnContention(ctx, run); err != nil {
			return fixed, err
		}
		for _, c := range corrections {
			l.appendAudit(ctx, AuditEntry{
				Entity:   "stock_record",
				EntityID: productID,
				Action:   "fix_inconsistency",
				Actor:    actor,
				Payload:  map[string]any{"rule": c.Rule, "detail": c.Detail},
			})
		}
		fixed = append(fixed, corrections...)
	}
	return fixed, nil
}

// checkRecord evalúa las invariantes sobre un registro y su historial.
func checkRecord(stock *entity.StockRecord, movements []*entity.StockMovement) []dto.StockViolationDTO {
	var out []dto.StockViolationDTO

	if stock.CurrentQuantity.IsNegative() {
		out = append(out, violation(stock, dto.RuleNonNegativeCurrent, decimal.Zero,
			"el stock actual no puede ser negativo"))
	}
	if stock.ReservedQuantity.IsNegative() {
		out = append(out, violation(stock, dto.RuleNonNegativeReserved, decimal.Zero,
			"la reserva no puede ser negativa"))
	}
	if stock.ReservedQuantity.GreaterThan(stock.CurrentQuantity) {
		out = append(out, violation(stock, dto.RuleReservedWithinStock, stock.CurrentQuantity,
			"la reserva excede el stock actual"))
	}

	onHandSum := decimal.Zero
	reservedSum := decimal.Zero
	for _, m := range movements {
		onHandSum = onHandSum.Add(m.OnHandEffect())
		reservedSum = reservedSum.Add(m.ReservedEffect())
	}
	if !onHandSum.Equal(stock.CurrentQuantity) {
		out = append(out, violation(stock, dto.RuleMovementSumMatches, onHandSum,
			fmt.Sprintf("la suma de movimientos (%s) no coincide con el stock actual (%s)", onHandSum, stock.CurrentQuantity)))
	}
	if !reservedSum.Equal(stock.ReservedQuantity) {
		out = append(out, violation(stock, dto.RuleReservedSumMatches, reservedSum,
			fmt.Sprintf("la suma de movimientos de reserva (%s) no coincide con la reserva (%s)", reservedSum, stock.ReservedQuantity)))
	}
	return out
}

func violation(stock *entity.StockRecord, rule string, expected decimal.Decimal, detail string) dto.StockViolationDTO {
	return dto.StockViolationDTO{
		ProductID:        stock.ProductID,
		Rule:             rule,
		CurrentQuantity:  stock.CurrentQuantity,
		ReservedQuantity: stock.ReservedQuantity,
		Expected:         expected,
		Detail:           detail,
	}
}
