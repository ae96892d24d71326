package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/blue-coffee-vending/internal/change"
	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lemonTea = model.Product{ID: 4, Name: "Lemon Tea", Price: 20, Stock: 5, SlotCode: "A4"}

func selectingMachine(t *testing.T, client *fakeClient, opts ...Option) *Machine {
	t.Helper()
	m := NewMachine(client, opts...)
	require.NoError(t, m.SelectProduct(context.Background(), lemonTea))
	return m
}

func TestMachine_LemonTeaPurchase(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient(lemonTea)
	client.confirmFn = func(_ context.Context, sessionID string) (model.TransactionResult, error) {
		assert.Equal(t, "session-1", sessionID)
		return model.TransactionResult{
			Status:         model.PurchaseStatusSuccess,
			Product:        model.ProductRef{ID: 4, Name: "Lemon Tea"},
			Paid:           30,
			Price:          20,
			Change:         10,
			ChangeDetail:   []model.ChangeItem{{Denom: 10, Qty: 1}},
			RemainingStock: 4,
		}, nil
	}
	m := NewMachine(client)

	require.NoError(t, m.SelectProduct(ctx, lemonTea))
	v := m.View()
	assert.Equal(t, PhaseSelecting, v.Phase)
	assert.Equal(t, "session-1", v.SessionID)
	assert.Equal(t, 0, v.Inserted)

	require.NoError(t, m.InsertMoney(ctx, 10))
	v = m.View()
	assert.Equal(t, 10, v.Inserted)
	assert.False(t, v.CanConfirm)
	assert.True(t, v.CanInsert)
	assert.Equal(t, 10, v.Remaining())

	require.NoError(t, m.InsertMoney(ctx, 20))
	v = m.View()
	assert.Equal(t, 30, v.Inserted)
	assert.True(t, v.CanConfirm)
	assert.False(t, v.CanInsert)
	assert.Equal(t, 0, v.Remaining())

	require.NoError(t, m.ConfirmPurchase(ctx))
	v = m.View()
	assert.Equal(t, PhaseCompleted, v.Phase)
	require.NotNil(t, v.Result)
	assert.Equal(t, 30, v.Result.Paid)
	assert.Equal(t, 20, v.Result.Price)
	assert.Equal(t, 10, v.Result.Change)

	rows := change.Render(v.Result.ChangeDetail)
	require.Len(t, rows, 1)
	assert.Equal(t, "10 THB x1", rows[0].String())
	assert.Equal(t, model.KindCoin, rows[0].Kind)

	assert.Equal(t, []string{"select", "insert", "insert", "confirm"}, client.Calls())
}

func TestMachine_InsertedIsBackendReported(t *testing.T) {
	reported := []int{10, 10, 25, 125}
	call := 0
	client := newFakeClient(lemonTea)
	client.insertFn = func(context.Context, string, model.Denomination) (int, error) {
		amount := reported[call]
		call++
		return amount, nil
	}
	m := selectingMachine(t, client)

	for i, denom := range []model.Denomination{10, 5, 20, 100} {
		require.NoError(t, m.InsertMoney(context.Background(), denom))
		assert.Equal(t, reported[i], m.View().Inserted, "after insert %d", i)
	}
}

func TestMachine_SelectNetworkFailure(t *testing.T) {
	client := newFakeClient(lemonTea)
	client.selectFn = func(context.Context, int) (string, error) {
		return "", errConnRefused
	}
	m := NewMachine(client)

	err := m.SelectProduct(context.Background(), lemonTea)
	require.ErrorIs(t, err, errConnRefused)

	v := m.View()
	assert.Equal(t, PhaseBrowsing, v.Phase)
	assert.Empty(t, v.SessionID)
	assert.Nil(t, v.Product)
	assert.Equal(t, errConnRefused.Error(), v.Error)
	assert.False(t, v.Busy)
	assert.True(t, v.CanSelect)
}

func TestMachine_ConfirmFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient(lemonTea)
	client.confirmFn = func(context.Context, string) (model.TransactionResult, error) {
		return model.TransactionResult{}, &backendError{detail: "Product out of stock"}
	}
	m := selectingMachine(t, client)
	require.NoError(t, m.InsertMoney(ctx, 20))

	err := m.ConfirmPurchase(ctx)
	require.Error(t, err)

	v := m.View()
	assert.Equal(t, PhaseSelecting, v.Phase)
	assert.Equal(t, "session-1", v.SessionID)
	assert.Equal(t, 20, v.Inserted)
	assert.Equal(t, "Product out of stock", v.Error)
	assert.True(t, v.CanConfirm)
	assert.True(t, v.CanCancel)

	require.NoError(t, m.CancelPurchase(ctx))
	v = m.View()
	assert.Equal(t, PhaseBrowsing, v.Phase)
	assert.Empty(t, v.Error)
}

func TestMachine_ConfirmRequiresCoveredPrice(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient(lemonTea)
	m := selectingMachine(t, client)
	require.NoError(t, m.InsertMoney(ctx, 10))

	err := m.ConfirmPurchase(ctx)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.NotContains(t, client.Calls(), "confirm")
	assert.Empty(t, m.View().Error)

	require.NoError(t, m.InsertMoney(ctx, 10))
	assert.True(t, m.View().CanConfirm)
	require.NoError(t, m.ConfirmPurchase(ctx))
}

func TestMachine_ConfirmOutsideSelecting(t *testing.T) {
	m := NewMachine(newFakeClient())
	require.ErrorIs(t, m.ConfirmPurchase(context.Background()), ErrInvalidTransition)
}

func TestMachine_ResetFromEveryPhase(t *testing.T) {
	tests := []struct {
		setup func(t *testing.T, m *Machine)
		name  string
	}{
		{name: "browsing", setup: func(*testing.T, *Machine) {}},
		{
			name: "selecting with money",
			setup: func(t *testing.T, m *Machine) {
				t.Helper()
				require.NoError(t, m.SelectProduct(context.Background(), lemonTea))
				require.NoError(t, m.InsertMoney(context.Background(), 10))
			},
		},
		{
			name: "completed",
			setup: func(t *testing.T, m *Machine) {
				t.Helper()
				require.NoError(t, m.SelectProduct(context.Background(), lemonTea))
				require.NoError(t, m.InsertMoney(context.Background(), 20))
				require.NoError(t, m.ConfirmPurchase(context.Background()))
			},
		},
	}

	resets := map[string]func(*Machine) error{
		"cancel": func(m *Machine) error { return m.CancelPurchase(context.Background()) },
		"return": func(m *Machine) error { return m.ReturnToBrowsing(context.Background()) },
	}

	for _, tt := range tests {
		for resetName, reset := range resets {
			t.Run(tt.name+"/"+resetName, func(t *testing.T) {
				m := NewMachine(newFakeClient(lemonTea))
				tt.setup(t, m)

				require.NoError(t, reset(m))

				assert.Equal(t, Browsing{}, m.State())
				v := m.View()
				assert.Equal(t, PhaseBrowsing, v.Phase)
				assert.Empty(t, v.SessionID)
				assert.Nil(t, v.Product)
				assert.Nil(t, v.Result)
				assert.Zero(t, v.Inserted)
				assert.True(t, v.CanSelect)
				assert.False(t, v.CanReturn)
			})
		}
	}
}

func TestMachine_InsertWithoutSession(t *testing.T) {
	client := newFakeClient()
	m := NewMachine(client)

	require.NoError(t, m.InsertMoney(context.Background(), 10))
	assert.Empty(t, client.Calls())
	assert.Equal(t, Browsing{}, m.State())
}

func TestMachine_InsertInvalidDenominationWithoutSession(t *testing.T) {
	client := newFakeClient()
	m := NewMachine(client)

	require.NoError(t, m.InsertMoney(context.Background(), 3))
	assert.Empty(t, client.Calls())
	assert.Equal(t, Browsing{}, m.State())
}

func TestMachine_InsertInvalidDenomination(t *testing.T) {
	client := newFakeClient(lemonTea)
	m := selectingMachine(t, client)

	err := m.InsertMoney(context.Background(), 3)
	require.ErrorIs(t, err, ErrInvalidDenomination)
	assert.Equal(t, []string{"select"}, client.Calls())
	assert.Zero(t, m.View().Inserted)
}

func TestMachine_InsertRejectedKeepsAmount(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient(lemonTea)
	m := selectingMachine(t, client)
	require.NoError(t, m.InsertMoney(ctx, 10))

	client.insertFn = func(context.Context, string, model.Denomination) (int, error) {
		return 0, &backendError{detail: "Denomination not accepted"}
	}
	require.Error(t, m.InsertMoney(ctx, 500))

	v := m.View()
	assert.Equal(t, 10, v.Inserted)
	assert.Equal(t, "Denomination not accepted", v.Error)

	client.insertFn = nil
	require.NoError(t, m.InsertMoney(ctx, 10))
	v = m.View()
	assert.Equal(t, 20, v.Inserted)
	assert.Empty(t, v.Error, "a later success clears the error")
}

func TestMachine_SelectFromCompleted(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient(lemonTea)
	m := selectingMachine(t, client)
	require.NoError(t, m.InsertMoney(ctx, 20))
	require.NoError(t, m.ConfirmPurchase(ctx))

	err := m.SelectProduct(ctx, lemonTea)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, PhaseCompleted, m.View().Phase)
}

func TestMachine_ReselectStartsFreshSession(t *testing.T) {
	ctx := context.Background()
	chips := model.Product{ID: 9, Name: "Chips", Price: 15, Stock: 2, SlotCode: "B1"}
	sessions := []string{"session-1", "session-2"}
	client := newFakeClient(lemonTea, chips)
	client.selectFn = func(context.Context, int) (string, error) {
		id := sessions[0]
		sessions = sessions[1:]
		return id, nil
	}
	journal := &memoryJournal{}
	m := NewMachine(client, WithJournal(journal))

	require.NoError(t, m.SelectProduct(ctx, lemonTea))
	require.NoError(t, m.InsertMoney(ctx, 10))
	require.NoError(t, m.SelectProduct(ctx, chips))

	assert.Equal(t, Selecting{SessionID: "session-2", Product: chips}, m.State())
	require.Len(t, journal.abandoned, 1)
	assert.Equal(t, "session-1", journal.abandoned[0].SessionID)
	assert.Equal(t, 10, journal.abandoned[0].Inserted)
	assert.Equal(t, model.AbandonReselected, journal.abandoned[0].Reason)
}

func TestMachine_EmptySessionID(t *testing.T) {
	client := newFakeClient(lemonTea)
	client.selectFn = func(context.Context, int) (string, error) { return "", nil }
	m := NewMachine(client)

	require.ErrorIs(t, m.SelectProduct(context.Background(), lemonTea), ErrEmptySession)
	assert.Equal(t, PhaseBrowsing, m.View().Phase)
}

func TestMachine_BusyDuringRequest(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := newFakeClient(lemonTea)
	m := selectingMachine(t, client)
	client.insertFn = func(context.Context, string, model.Denomination) (int, error) {
		close(started)
		<-release
		return 0, errConnRefused
	}

	done := make(chan error, 1)
	go func() { done <- m.InsertMoney(context.Background(), 10) }()

	<-started
	v := m.View()
	assert.True(t, v.Busy)
	assert.False(t, v.CanInsert)
	assert.False(t, v.CanCancel)
	assert.True(t, v.CanReturn)

	close(release)
	require.ErrorIs(t, <-done, errConnRefused)
	assert.False(t, m.Busy(), "busy is released after a failure")
	assert.True(t, m.View().CanInsert)
}

// gate lets a test hold a fake backend call open until it decides to answer.
type gate struct {
	entered chan struct{}
	answer  chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), answer: make(chan struct{})}
}

func (g *gate) wait() {
	close(g.entered)
	<-g.answer
}

func TestMachine_StaleResponses(t *testing.T) {
	t.Run("select answered after cancel", func(t *testing.T) {
		g := newGate()
		client := newFakeClient(lemonTea)
		client.selectFn = func(context.Context, int) (string, error) {
			g.wait()
			return "late-session", nil
		}
		m := NewMachine(client)

		done := make(chan error, 1)
		go func() { done <- m.SelectProduct(context.Background(), lemonTea) }()
		<-g.entered
		require.NoError(t, m.CancelPurchase(context.Background()))
		close(g.answer)

		require.ErrorIs(t, <-done, ErrStaleResponse)
		assert.Equal(t, Browsing{}, m.State())
	})

	t.Run("older select answered after newer one", func(t *testing.T) {
		first := newGate()
		client := newFakeClient(lemonTea)
		calls := 0
		client.selectFn = func(context.Context, int) (string, error) {
			calls++
			if calls == 1 {
				first.wait()
				return "first", nil
			}
			return "second", nil
		}
		m := NewMachine(client)

		done := make(chan error, 1)
		go func() { done <- m.SelectProduct(context.Background(), lemonTea) }()
		<-first.entered
		require.NoError(t, m.SelectProduct(context.Background(), lemonTea))
		close(first.answer)

		require.ErrorIs(t, <-done, ErrStaleResponse)
		assert.Equal(t, "second", m.View().SessionID)
	})

	t.Run("older insert answered after newer one", func(t *testing.T) {
		first := newGate()
		client := newFakeClient(lemonTea)
		m := selectingMachine(t, client)
		calls := 0
		client.insertFn = func(context.Context, string, model.Denomination) (int, error) {
			calls++
			if calls == 1 {
				first.wait()
				return 10, nil
			}
			return 30, nil
		}

		done := make(chan error, 1)
		go func() { done <- m.InsertMoney(context.Background(), 10) }()
		<-first.entered
		require.NoError(t, m.InsertMoney(context.Background(), 20))
		close(first.answer)

		require.ErrorIs(t, <-done, ErrStaleResponse)
		assert.Equal(t, 30, m.View().Inserted)
	})

	t.Run("insert answered after the session was replaced", func(t *testing.T) {
		g := newGate()
		client := newFakeClient(lemonTea)
		m := selectingMachine(t, client)
		client.insertFn = func(context.Context, string, model.Denomination) (int, error) {
			g.wait()
			return 0, errConnRefused
		}

		done := make(chan error, 1)
		go func() { done <- m.InsertMoney(context.Background(), 10) }()
		<-g.entered
		require.NoError(t, m.ReturnToBrowsing(context.Background()))
		close(g.answer)

		require.ErrorIs(t, <-done, ErrStaleResponse)
		assert.Empty(t, m.View().Error, "a stale failure is not surfaced")
	})

	t.Run("confirm answered after return", func(t *testing.T) {
		g := newGate()
		journal := &memoryJournal{}
		client := newFakeClient(lemonTea)
		m := selectingMachine(t, client, WithJournal(journal))
		require.NoError(t, m.InsertMoney(context.Background(), 20))
		client.confirmFn = func(context.Context, string) (model.TransactionResult, error) {
			g.wait()
			return model.TransactionResult{
				Status:  model.PurchaseStatusSuccess,
				Product: model.ProductRef{ID: 4, Name: "Lemon Tea"},
				Paid:    20,
				Price:   20,
			}, nil
		}

		done := make(chan error, 1)
		go func() { done <- m.ConfirmPurchase(context.Background()) }()
		<-g.entered
		require.NoError(t, m.ReturnToBrowsing(context.Background()))
		close(g.answer)

		require.ErrorIs(t, <-done, ErrStaleResponse)
		assert.Equal(t, PhaseBrowsing, m.View().Phase)

		// The backend completed the sale, so the journal still gets the receipt.
		require.Len(t, journal.purchases, 1)
		assert.Equal(t, "session-1", journal.purchases[0].SessionID)
		assert.Equal(t, 20, journal.purchases[0].Paid)
		require.Len(t, journal.abandoned, 1)
		assert.Equal(t, model.AbandonReturned, journal.abandoned[0].Reason)
	})

	t.Run("failed confirm answered after return", func(t *testing.T) {
		g := newGate()
		journal := &memoryJournal{}
		client := newFakeClient(lemonTea)
		m := selectingMachine(t, client, WithJournal(journal))
		require.NoError(t, m.InsertMoney(context.Background(), 20))
		client.confirmFn = func(context.Context, string) (model.TransactionResult, error) {
			g.wait()
			return model.TransactionResult{}, errConnRefused
		}

		done := make(chan error, 1)
		go func() { done <- m.ConfirmPurchase(context.Background()) }()
		<-g.entered
		require.NoError(t, m.CancelPurchase(context.Background()))
		close(g.answer)

		require.ErrorIs(t, <-done, ErrStaleResponse)
		assert.Empty(t, journal.purchases)
		assert.Empty(t, m.View().Error)
	})
}

func TestMachine_Journal(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	t.Run("completed purchase", func(t *testing.T) {
		journal := &memoryJournal{}
		client := newFakeClient(lemonTea)
		client.confirmFn = func(context.Context, string) (model.TransactionResult, error) {
			return model.TransactionResult{
				Status:       model.PurchaseStatusSuccess,
				Product:      model.ProductRef{ID: 4, Name: "Lemon Tea"},
				Paid:         50,
				Price:        20,
				Change:       30,
				ChangeDetail: []model.ChangeItem{{Denom: 20, Qty: 1}, {Denom: 10, Qty: 1}},
			}, nil
		}
		m := selectingMachine(t, client, WithJournal(journal), WithClock(func() time.Time { return fixed }))
		require.NoError(t, m.InsertMoney(ctx, 50))
		require.NoError(t, m.ConfirmPurchase(ctx))

		require.Len(t, journal.purchases, 1)
		record := journal.purchases[0]
		assert.Equal(t, "session-1", record.SessionID)
		assert.Equal(t, 4, record.ProductID)
		assert.Equal(t, 30, record.Change)
		assert.Equal(t, fixed, record.CompletedAt)

		require.NoError(t, m.ReturnToBrowsing(ctx))
		assert.Empty(t, journal.abandoned, "returning after a purchase abandons nothing")
	})

	t.Run("cancel records abandoned session", func(t *testing.T) {
		journal := &memoryJournal{}
		m := selectingMachine(t, newFakeClient(lemonTea), WithJournal(journal), WithClock(func() time.Time { return fixed }))
		require.NoError(t, m.InsertMoney(ctx, 5))
		require.NoError(t, m.CancelPurchase(ctx))

		require.Len(t, journal.abandoned, 1)
		assert.Equal(t, model.AbandonedSession{
			SessionID:   "session-1",
			ProductID:   4,
			ProductName: "Lemon Tea",
			Inserted:    5,
			Reason:      model.AbandonCancelled,
			AbandonedAt: fixed,
		}, journal.abandoned[0])
	})

	t.Run("journal failures are not surfaced", func(t *testing.T) {
		journal := &memoryJournal{err: errors.New("disk full")}
		m := selectingMachine(t, newFakeClient(lemonTea), WithJournal(journal))
		require.NoError(t, m.InsertMoney(ctx, 20))
		require.NoError(t, m.ConfirmPurchase(ctx))
		assert.Empty(t, m.View().Error)
	})
}

func TestMachine_AbortOnCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled", func(t *testing.T) {
		client := newFakeClient(lemonTea)
		m := selectingMachine(t, client, WithAborter(client), WithAbortOnCancel(true))
		require.NoError(t, m.CancelPurchase(ctx))
		assert.Contains(t, client.Calls(), "abort session-1")
		assert.False(t, m.Busy())
	})

	t.Run("disabled", func(t *testing.T) {
		client := newFakeClient(lemonTea)
		m := selectingMachine(t, client, WithAborter(client))
		require.NoError(t, m.CancelPurchase(ctx))
		assert.NotContains(t, client.Calls(), "abort session-1")
	})

	t.Run("abort failure does not fail cancel", func(t *testing.T) {
		client := newFakeClient(lemonTea)
		client.abortFn = func(context.Context, string) error { return errConnRefused }
		m := selectingMachine(t, client, WithAborter(client), WithAbortOnCancel(true))
		require.NoError(t, m.CancelPurchase(ctx))
		assert.Equal(t, PhaseBrowsing, m.View().Phase)
		assert.Empty(t, m.View().Error)
	})

	t.Run("nothing to abort", func(t *testing.T) {
		client := newFakeClient(lemonTea)
		m := NewMachine(client, WithAborter(client), WithAbortOnCancel(true))
		require.NoError(t, m.CancelPurchase(ctx))
		assert.Empty(t, client.Calls())
	})
}
