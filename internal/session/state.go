// Package session implements the purchase workflow of a single vending session.
//
// A session moves Browsing → Selecting → Completed → Browsing. The Machine owns
// the only copy of that state; every change goes through one of its operations,
// and each operation that needs the backend goes through a service.VendingClient.
package session

import (
	"errors"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
)

// Errors returned by Machine operations.
var (
	// ErrInvalidTransition means the operation is not legal in the current phase.
	ErrInvalidTransition = errors.New("operation not allowed in current phase")
	// ErrInsufficientFunds means confirm was attempted before the price was covered.
	ErrInsufficientFunds = errors.New("inserted amount does not cover the price")
	// ErrInvalidDenomination means the denomination is not in the money catalog.
	ErrInvalidDenomination = errors.New("denomination not accepted")
	// ErrStaleResponse means a backend response arrived after the state it
	// answered had been superseded. The response was discarded.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrEmptySession means the backend opened a session without an identifier.
	ErrEmptySession = errors.New("backend returned an empty session id")
)

// Phase is the discrete stage of the purchase workflow.
type Phase int

// Workflow phases.
const (
	PhaseBrowsing Phase = iota
	PhaseSelecting
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseBrowsing:
		return "browsing"
	case PhaseSelecting:
		return "selecting"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// State is one of Browsing, Selecting or Completed. Each variant carries only
// the fields legal in its phase.
type State interface {
	Phase() Phase
	isState()
}

// Browsing has no session.
type Browsing struct{}

// Selecting holds an open backend session waiting for payment.
type Selecting struct {
	SessionID string
	Product   model.Product
	Inserted  int
}

// Completed holds a confirmed purchase until the buyer returns to the catalog.
type Completed struct {
	SessionID string
	Product   model.Product
	Result    model.TransactionResult
}

// Phase implements State.
func (Browsing) Phase() Phase { return PhaseBrowsing }

// Phase implements State.
func (Selecting) Phase() Phase { return PhaseSelecting }

// Phase implements State.
func (Completed) Phase() Phase { return PhaseCompleted }

func (Browsing) isState()  {}
func (Selecting) isState() {}
func (Completed) isState() {}

// Remaining is how much more must be inserted before confirm is allowed.
func (s Selecting) Remaining() int {
	if r := s.Product.Price - s.Inserted; r > 0 {
		return r
	}
	return 0
}

// Covered reports whether the inserted amount pays for the product.
func (s Selecting) Covered() bool {
	return s.Inserted >= s.Product.Price
}
