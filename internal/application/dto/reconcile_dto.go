package dto

// ReconcileResultDTO resultado de sincronizar las tareas de producción de un pedido
// con su déficit residual.
type ReconcileResultDTO struct {
	OrderID   string
	Created   int
	Shrunk    int
	Cancelled int
}
