package tui

import (
	"github.com/Veraticus/blue-coffee-vending/internal/model"
)

// Data loading messages.
type catalogLoadedMsg struct {
	err      error
	products []model.Product
}

type moneyStockLoadedMsg struct {
	err   error
	stock []model.MoneyStock
}

// operation names a session state machine call dispatched from the UI.
type operation int

const (
	opSelect operation = iota
	opInsert
	opConfirm
	opCancel
	opReturn
)

func (o operation) String() string {
	switch o {
	case opSelect:
		return "select"
	case opInsert:
		return "insert"
	case opConfirm:
		return "confirm"
	case opCancel:
		return "cancel"
	case opReturn:
		return "return"
	default:
		return "unknown"
	}
}

// opDoneMsg reports that a dispatched operation finished.
type opDoneMsg struct {
	err error
	op  operation
}
