// internal/domain/sale/errors.go
package sale

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with no lines
	ErrEmptyCart = errors.New("cart is empty")
	// ErrSaleNotFound is returned when a sale lookup misses
	ErrSaleNotFound = errors.New("sale not found")
	// ErrProductNotFound is returned when a cart line references an unknown product
	ErrProductNotFound = errors.New("product not found")
	// ErrCategoryNotFound is returned when a product's category is missing
	ErrCategoryNotFound = errors.New("category not found")
	// ErrAlreadyReversed is returned when a sale was already reversed
	ErrAlreadyReversed = errors.New("sale already reversed")
	// ErrProductUnavailable is returned when a cart line references a product
	// an operator has taken off sale
	ErrProductUnavailable = errors.New("product not available for sale")
	// ErrLinePriceConflict is returned when duplicate cart lines for one
	// product disagree on the unit price
	ErrLinePriceConflict = errors.New("conflicting unit prices")
)

// InsufficientStockError reports a quantity check failure for one cart line
type InsufficientStockError struct {
	ProductCode string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available, %d requested",
		e.ProductCode, e.Available, e.Requested)
}

// AlreadySoldError reports a double sell of a single-item product
type AlreadySoldError struct {
	ProductCode string
	SKUValue    string
}

func (e *AlreadySoldError) Error() string {
	if e.SKUValue != "" {
		return fmt.Sprintf("product %s (%s) has already been sold", e.ProductCode, e.SKUValue)
	}
	return fmt.Sprintf("product %s has already been sold", e.ProductCode)
}
