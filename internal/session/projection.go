package session

import (
	"errors"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
)

// View is a read-only snapshot of the machine for rendering.
type View struct {
	Product    *model.Product
	Result     *model.TransactionResult
	SessionID  string
	Error      string
	Phase      Phase
	Inserted   int
	Busy       bool
	CanSelect  bool
	CanInsert  bool
	CanConfirm bool
	CanCancel  bool
	CanReturn  bool
}

// Remaining is how much is still owed, or zero outside Selecting.
func (v View) Remaining() int {
	if v.Phase != PhaseSelecting || v.Product == nil {
		return 0
	}
	if r := v.Product.Price - v.Inserted; r > 0 {
		return r
	}
	return 0
}

// View projects the current state, busy flag and last error into a snapshot.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return project(m.state, m.inflight > 0, m.lastErr)
}

func project(state State, busy bool, lastErr error) View {
	v := View{
		Phase: state.Phase(),
		Busy:  busy,
		Error: Message(lastErr),
	}

	switch s := state.(type) {
	case Selecting:
		product := s.Product
		v.SessionID = s.SessionID
		v.Product = &product
		v.Inserted = s.Inserted
		v.CanInsert = !busy && !s.Covered()
		v.CanConfirm = !busy && s.Covered()
		v.CanCancel = !busy
		v.CanReturn = true
	case Completed:
		product := s.Product
		result := s.Result
		v.SessionID = s.SessionID
		v.Product = &product
		v.Result = &result
		v.Inserted = s.Result.Paid
		v.CanReturn = true
	default:
		v.CanSelect = !busy
	}

	return v
}

// detailer is implemented by errors that carry a backend-supplied description.
type detailer interface {
	Detail() string
}

// backendCodes turns the backend's machine-readable error codes into text a
// buyer can act on.
var backendCodes = map[string]string{
	"NOT_ENOUGH_MONEY":    "Not enough money inserted",
	"INSUFFICIENT_CHANGE": "The machine cannot make change for this amount",
	"INVALID_SESSION":     "This session is no longer valid, please select again",
}

// Message extracts a human-readable message from err, preferring the backend's
// structured detail over the transport error text.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var d detailer
	if errors.As(err, &d) {
		if detail := d.Detail(); detail != "" {
			if text, ok := backendCodes[detail]; ok {
				return text
			}
			return detail
		}
	}

	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "Please insert more money"
	case errors.Is(err, ErrInvalidDenomination):
		return "That denomination is not accepted"
	}

	return err.Error()
}
