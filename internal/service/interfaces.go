// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
)

// VendingClient is the request/response boundary to the vending backend.
// It owns no session state; every call is an independent request.
type VendingClient interface {
	// Catalog operations
	ListProducts(ctx context.Context, includeSoldOut bool) ([]model.Product, error)
	ListMoneyStock(ctx context.Context) ([]model.MoneyStock, error)

	// Session operations
	SelectProduct(ctx context.Context, productID int) (string, error)
	InsertMoney(ctx context.Context, sessionID string, denom model.Denomination) (int, error)
	Confirm(ctx context.Context, sessionID string) (model.TransactionResult, error)
}

// SessionAborter is implemented by clients that can tell the backend a session was abandoned.
type SessionAborter interface {
	AbortSession(ctx context.Context, sessionID string) error
}

// Journal is the local record of completed and abandoned purchases.
type Journal interface {
	RecordPurchase(ctx context.Context, record *model.PurchaseRecord) error
	RecordAbandoned(ctx context.Context, record *model.AbandonedSession) error
	ListPurchases(ctx context.Context, filter JournalFilter) ([]model.PurchaseRecord, error)
	ListAbandoned(ctx context.Context, filter JournalFilter) ([]model.AbandonedSession, error)
	Close() error
}

// JournalFilter narrows journal queries.
type JournalFilter struct {
	Since *time.Time
	Limit int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
