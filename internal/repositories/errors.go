package repositories

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("repositories: not found")
	// ErrConflict indicates a uniqueness or concurrent-modification violation.
	ErrConflict = errors.New("repositories: conflict")
	// ErrInsufficientStock indicates an atomic reservation found less stock than required.
	ErrInsufficientStock = errors.New("repositories: insufficient stock")
)

// StockShortfallError reports which product blocked a reservation and by how
// much. It unwraps to ErrInsufficientStock so callers can branch on the class.
type StockShortfallError struct {
	ProductID int64
	Available int
	Required  int
}

// Error implements the error interface.
func (e *StockShortfallError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, required %d", e.ProductID, e.Available, e.Required)
}

// Unwrap exposes the sentinel class of this error.
func (e *StockShortfallError) Unwrap() error {
	return ErrInsufficientStock
}
