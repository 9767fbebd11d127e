package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound                = errors.New("recurso no encontrado")
	ErrInvalidInput            = errors.New("entrada inválida")
	ErrInsufficientStock       = errors.New("stock insuficiente")
	ErrInsufficientReservation = errors.New("reserva insuficiente")
	ErrLockContention          = errors.New("fila de stock bloqueada por otra operación")
	ErrIntegrityViolation      = errors.New("violación de integridad de stock")
	ErrConflict                = errors.New("conflicto con el estado actual")
	ErrDuplicate               = errors.New("recurso duplicado")
)
