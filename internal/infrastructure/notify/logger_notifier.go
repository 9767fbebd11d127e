package notify

import (
	"context"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/ledger"
	"github.com/progprogect/erp-shvedoff-sub000/pkg/logger"
)

var _ ledger.Notifier = (*LoggerNotifier)(nil)

// LoggerNotifier colaborador de mensajería que solo escribe en el log
// estructurado. Sustituto del canal real (bot de mensajería) en despliegues
// donde no está configurado; el contrato fire-and-forget es el mismo.
type LoggerNotifier struct {
	log *logger.Logger
}

// NewLoggerNotifier construye el notificador.
func NewLoggerNotifier(log *logger.Logger) *LoggerNotifier {
	return &LoggerNotifier{log: log}
}

func (n *LoggerNotifier) Notify(ctx context.Context, orderID, text string) error {
	n.log.Info().Str("order_id", orderID).Str("text", text).Msg("notificación")
	return nil
}
