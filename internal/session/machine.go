package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
)

// Machine is the transaction session state machine. It is safe for concurrent
// use: a mutex guards the session while network calls run outside the lock.
//
// Every dispatched request takes a sequence number and remembers the session
// generation it was sent against. The generation moves whenever the session is
// reset, replaced or completed, so a response that arrives for an older
// generation, or a select/insert that a newer one already overtook, is dropped
// with ErrStaleResponse.
type Machine struct {
	client        service.VendingClient
	journal       service.Journal
	aborter       service.SessionAborter
	now           func() time.Time
	lastErr       error
	state         State
	seq           sequencer
	gen           uint64
	latestSelect  uint64
	appliedInsert uint64
	inflight      int
	mu            sync.Mutex
	abortOnCancel bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithJournal records completed and abandoned sessions.
func WithJournal(j service.Journal) Option {
	return func(m *Machine) {
		m.journal = j
	}
}

// WithAborter notifies the backend when the buyer cancels. It only takes
// effect together with WithAbortOnCancel(true).
func WithAborter(a service.SessionAborter) Option {
	return func(m *Machine) {
		m.aborter = a
	}
}

// WithAbortOnCancel enables backend notification on cancel.
func WithAbortOnCancel(enabled bool) Option {
	return func(m *Machine) {
		m.abortOnCancel = enabled
	}
}

// WithClock overrides the time source used for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// NewMachine creates a machine in the Browsing phase.
func NewMachine(client service.VendingClient, opts ...Option) *Machine {
	m := &Machine{
		client: client,
		state:  Browsing{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current session state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Busy reports whether any backend request is outstanding.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight > 0
}

// Err returns the error of the most recent failed backend request, if it has
// not been cleared by a later success.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SelectProduct opens a backend session for product. From Selecting the open
// session is abandoned and a fresh one requested.
func (m *Machine) SelectProduct(ctx context.Context, product model.Product) error {
	m.mu.Lock()
	if _, done := m.state.(Completed); done {
		m.mu.Unlock()
		return fmt.Errorf("select product: %w: purchase already completed", ErrInvalidTransition)
	}
	t := m.dispatchLocked()
	m.latestSelect = t.seq
	m.mu.Unlock()
	defer m.release()

	sessionID, err := m.client.SelectProduct(ctx, product.ID)
	if err == nil && sessionID == "" {
		err = ErrEmptySession
	}

	m.mu.Lock()
	if m.gen != t.gen || m.latestSelect != t.seq {
		m.mu.Unlock()
		if err == nil {
			common.LogInfo("Discarded superseded session", common.Fields{
				"session_id": sessionID,
				"product_id": product.ID,
			})
		}
		return ErrStaleResponse
	}
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		return err
	}

	previous, hadSession := m.state.(Selecting)
	m.state = Selecting{SessionID: sessionID, Product: product}
	m.advanceLocked()
	m.lastErr = nil
	m.mu.Unlock()

	common.LogInfo("Session established", common.Fields{
		"session_id": sessionID,
		"product_id": product.ID,
	})
	if hadSession {
		m.recordAbandoned(ctx, previous, model.AbandonReselected)
	}
	return nil
}

// InsertMoney credits denom to the open session. Without an open session it
// does nothing, whatever denom is. The inserted amount is always replaced by
// the backend's total.
func (m *Machine) InsertMoney(ctx context.Context, denom model.Denomination) error {
	m.mu.Lock()
	current, ok := m.state.(Selecting)
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if !denom.Valid() {
		m.mu.Unlock()
		return fmt.Errorf("insert money: %w: %d", ErrInvalidDenomination, int(denom))
	}
	t := m.dispatchLocked()
	m.mu.Unlock()
	defer m.release()

	amount, err := m.client.InsertMoney(ctx, current.SessionID, denom)

	m.mu.Lock()
	defer m.mu.Unlock()

	latest, ok := m.state.(Selecting)
	if m.gen != t.gen || !ok || t.seq < m.appliedInsert {
		if err == nil {
			common.LogInfo("Discarded late insert total", common.Fields{
				"session_id": current.SessionID,
				"denom":      int(denom),
				"reported":   amount,
			})
		}
		return ErrStaleResponse
	}
	if err != nil {
		m.lastErr = err
		return err
	}

	if amount < latest.Inserted {
		common.LogInfo("Backend lowered inserted amount", common.Fields{
			"session_id": latest.SessionID,
			"previous":   latest.Inserted,
			"reported":   amount,
		})
	}
	latest.Inserted = amount
	m.state = latest
	m.appliedInsert = t.seq
	m.lastErr = nil
	return nil
}

// ConfirmPurchase completes the open session once the price is covered.
// A failed confirm leaves the session as it was.
func (m *Machine) ConfirmPurchase(ctx context.Context) error {
	m.mu.Lock()
	current, ok := m.state.(Selecting)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("confirm: %w: no open session", ErrInvalidTransition)
	}
	if !current.Covered() {
		m.mu.Unlock()
		return fmt.Errorf("confirm: %w: %d of %d inserted", ErrInsufficientFunds, current.Inserted, current.Product.Price)
	}
	t := m.dispatchLocked()
	m.mu.Unlock()
	defer m.release()

	result, err := m.client.Confirm(ctx, current.SessionID)

	m.mu.Lock()
	latest, ok := m.state.(Selecting)
	if m.gen != t.gen || !ok {
		m.mu.Unlock()
		if err == nil {
			// The sale happened on the backend even though the screen moved on.
			common.LogInfo("Purchase completed after session was left", common.Fields{
				"session_id": current.SessionID,
				"product_id": result.Product.ID,
				"paid":       result.Paid,
				"change":     result.Change,
			})
			m.recordPurchase(ctx, current.SessionID, result)
		}
		return ErrStaleResponse
	}
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		return err
	}

	m.state = Completed{SessionID: latest.SessionID, Product: latest.Product, Result: result}
	m.advanceLocked()
	m.lastErr = nil
	m.mu.Unlock()

	common.LogInfo("Purchase completed", common.Fields{
		"session_id": latest.SessionID,
		"product_id": result.Product.ID,
		"paid":       result.Paid,
		"change":     result.Change,
	})
	m.recordPurchase(ctx, latest.SessionID, result)
	return nil
}

// CancelPurchase abandons any session and returns to Browsing. When abort on
// cancel is enabled the backend is told about the abandoned session; failures
// of that call are logged and do not fail the cancel.
func (m *Machine) CancelPurchase(ctx context.Context) error {
	previous, hadSession := m.reset()
	if !hadSession {
		return nil
	}

	m.recordAbandoned(ctx, previous, model.AbandonCancelled)

	if m.abortOnCancel && m.aborter != nil {
		m.mu.Lock()
		m.inflight++
		m.mu.Unlock()
		defer m.release()

		if err := m.aborter.AbortSession(ctx, previous.SessionID); err != nil {
			common.LogError(err, "Failed to abort session", common.Fields{
				"session_id": previous.SessionID,
			})
		}
	}
	return nil
}

// ReturnToBrowsing clears the session and any result. It is legal from every
// phase.
func (m *Machine) ReturnToBrowsing(ctx context.Context) error {
	previous, hadSession := m.reset()
	if hadSession {
		m.recordAbandoned(ctx, previous, model.AbandonReturned)
	}
	return nil
}

// reset moves to Browsing and reports the open session it replaced, if any.
func (m *Machine) reset() (Selecting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous, hadSession := m.state.(Selecting)
	m.state = Browsing{}
	m.advanceLocked()
	m.lastErr = nil
	return previous, hadSession
}

func (m *Machine) dispatchLocked() ticket {
	m.inflight++
	return ticket{seq: m.seq.next(), gen: m.gen}
}

// advanceLocked starts a new session generation.
func (m *Machine) advanceLocked() {
	m.gen++
	m.appliedInsert = 0
}

func (m *Machine) release() {
	m.mu.Lock()
	m.inflight--
	m.mu.Unlock()
}

func (m *Machine) recordPurchase(ctx context.Context, sessionID string, result model.TransactionResult) {
	if m.journal == nil {
		return
	}
	record := &model.PurchaseRecord{
		SessionID:      sessionID,
		ProductID:      result.Product.ID,
		ProductName:    result.Product.Name,
		Price:          result.Price,
		Paid:           result.Paid,
		Change:         result.Change,
		ChangeDetail:   result.ChangeDetail,
		RemainingStock: result.RemainingStock,
		CompletedAt:    m.now(),
	}
	if err := m.journal.RecordPurchase(ctx, record); err != nil {
		common.LogError(err, "Failed to journal purchase", common.Fields{"session_id": sessionID})
	}
}

func (m *Machine) recordAbandoned(ctx context.Context, s Selecting, reason model.AbandonReason) {
	common.LogInfo("Session abandoned", common.Fields{
		"session_id": s.SessionID,
		"reason":     string(reason),
		"inserted":   s.Inserted,
	})
	if m.journal == nil {
		return
	}
	record := &model.AbandonedSession{
		SessionID:   s.SessionID,
		ProductID:   s.Product.ID,
		ProductName: s.Product.Name,
		Inserted:    s.Inserted,
		Reason:      reason,
		AbandonedAt: m.now(),
	}
	if err := m.journal.RecordAbandoned(ctx, record); err != nil {
		common.LogError(err, "Failed to journal abandoned session", common.Fields{"session_id": s.SessionID})
	}
}
