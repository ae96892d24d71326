// Package model defines the core vending domain types shared across the application.
package model

import "errors"

// ErrUnknownDenomination is returned when a value is not part of the money catalog.
var ErrUnknownDenomination = errors.New("unknown denomination")

// Product is an immutable snapshot of a catalog entry fetched from the backend.
type Product struct {
	Name     string
	SlotCode string // e.g. "A1"; the leading character selects the display category
	ImageRef string
	ID       int
	Price    int
	Stock    int
}

// InStock reports whether the backend listed any units for the product.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// CategoryKey returns the display category key taken from the slot code.
func (p Product) CategoryKey() string {
	for _, r := range p.SlotCode {
		return string(r)
	}
	return ""
}
