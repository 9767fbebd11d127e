package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una tarea de producción.
// Máquina de estados: pending → in_progress → completed;
// in_progress ⇄ paused; pending/in_progress/paused → cancelled.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusPaused     = "paused"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// OpenTaskStatus indica si la tarea sigue abierta (cuenta como producción planificada).
func OpenTaskStatus(status string) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusPaused:
		return true
	}
	return false
}

// CanTransitionTask valida una transición de estado de tarea.
func CanTransitionTask(from, to string) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusInProgress || to == TaskStatusCancelled
	case TaskStatusInProgress:
		return to == TaskStatusPaused || to == TaskStatusCompleted || to == TaskStatusCancelled
	case TaskStatusPaused:
		return to == TaskStatusInProgress || to == TaskStatusCancelled
	}
	// completed y cancelled son terminales
	return false
}

// ProductionTask solicitud de fabricación. Las tareas ligadas a un pedido
// (OrderID != nil) las crea y ajusta únicamente el reconciliador; las tareas
// manuales (OrderID == nil) quedan fuera de la reconciliación.
type ProductionTask struct {
	ID                string
	OrderID           *string
	ProductID         string
	RequestedQuantity decimal.Decimal
	Status            string
	Priority          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
