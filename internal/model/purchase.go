package model

import "time"

// PurchaseStatusSuccess is the status the backend reports for a completed sale.
const PurchaseStatusSuccess = "SUCCESS"

// ChangeItem is one denomination/quantity pair of a change breakdown.
type ChangeItem struct {
	Denom Denomination
	Qty   int
}

// ProductRef identifies the product a transaction was completed for.
type ProductRef struct {
	Name string
	ID   int
}

// TransactionResult is the backend's record of a confirmed purchase.
// It is created only from a successful confirm response and never mutated.
type TransactionResult struct {
	Status         string
	Product        ProductRef
	ChangeDetail   []ChangeItem
	Paid           int
	Price          int
	Change         int
	RemainingStock int
}

// HasChange reports whether the backend owes the buyer any change.
func (r TransactionResult) HasChange() bool {
	return r.Change > 0 && len(r.ChangeDetail) > 0
}

// PurchaseRecord is a journal entry written after a confirmed purchase.
type PurchaseRecord struct {
	CompletedAt    time.Time
	ID             string
	SessionID      string
	ProductName    string
	ChangeDetail   []ChangeItem
	ProductID      int
	Price          int
	Paid           int
	Change         int
	RemainingStock int
}

// AbandonReason describes why a session was left without confirming.
type AbandonReason string

const (
	// AbandonCancelled means the buyer cancelled the purchase.
	AbandonCancelled AbandonReason = "cancelled"
	// AbandonReturned means the buyer navigated back to the catalog.
	AbandonReturned AbandonReason = "returned"
	// AbandonReselected means the buyer picked a different product mid-payment.
	AbandonReselected AbandonReason = "reselected"
)

// AbandonedSession is a journal entry for a backend session left open by the client.
// Money inserted against it is not released by the client.
type AbandonedSession struct {
	AbandonedAt time.Time
	ID          string
	SessionID   string
	ProductName string
	Reason      AbandonReason
	ProductID   int
	Inserted    int
}
