// Package storage provides the SQLite purchase journal.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidPurchase = errors.New("invalid purchase record")
	ErrInvalidAbandon  = errors.New("invalid abandoned session")
	ErrInvalidFilter   = errors.New("invalid journal filter")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validatePurchase(record *model.PurchaseRecord) error {
	if record == nil {
		return fmt.Errorf("%w: purchase", ErrNilParameter)
	}
	if record.SessionID == "" {
		return fmt.Errorf("%w: missing session ID", ErrInvalidPurchase)
	}
	if record.ProductName == "" {
		return fmt.Errorf("%w: missing product name", ErrInvalidPurchase)
	}
	if record.Price < 0 || record.Paid < 0 || record.Change < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidPurchase)
	}
	if record.CompletedAt.IsZero() {
		return fmt.Errorf("%w: missing completion time", ErrInvalidPurchase)
	}
	for i, item := range record.ChangeDetail {
		if !item.Denom.Valid() || item.Qty < 1 {
			return fmt.Errorf("%w: change entry %d (%d x%d)", ErrInvalidPurchase, i, int(item.Denom), item.Qty)
		}
	}
	return nil
}

func validateAbandoned(record *model.AbandonedSession) error {
	if record == nil {
		return fmt.Errorf("%w: abandoned session", ErrNilParameter)
	}
	if record.SessionID == "" {
		return fmt.Errorf("%w: missing session ID", ErrInvalidAbandon)
	}
	switch record.Reason {
	case model.AbandonCancelled, model.AbandonReturned, model.AbandonReselected:
	default:
		return fmt.Errorf("%w: unknown reason %q", ErrInvalidAbandon, record.Reason)
	}
	if record.Inserted < 0 {
		return fmt.Errorf("%w: negative inserted amount", ErrInvalidAbandon)
	}
	if record.AbandonedAt.IsZero() {
		return fmt.Errorf("%w: missing abandon time", ErrInvalidAbandon)
	}
	return nil
}

func validateFilter(filter service.JournalFilter) error {
	if filter.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	return nil
}
