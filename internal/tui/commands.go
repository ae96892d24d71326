package tui

import (
	"context"
	"errors"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

var errNoClient = errors.New("vending client not configured")

// loadCatalog fetches the product list.
func (m Model) loadCatalog() tea.Cmd {
	client := m.config.Client
	includeSoldOut := m.config.ShowSoldOut
	parent, timeout := m.ctx, m.config.RequestTimeout

	return func() tea.Msg {
		if client == nil {
			return catalogLoadedMsg{err: errNoClient}
		}

		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		products, err := client.ListProducts(ctx, includeSoldOut)
		return catalogLoadedMsg{products: products, err: err}
	}
}

// loadMoneyStock fetches the machine's coin and note counts.
func (m Model) loadMoneyStock() tea.Cmd {
	client := m.config.Client
	parent, timeout := m.ctx, m.config.RequestTimeout

	return func() tea.Msg {
		if client == nil {
			return moneyStockLoadedMsg{err: errNoClient}
		}

		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		stock, err := client.ListMoneyStock(ctx)
		return moneyStockLoadedMsg{stock: stock, err: err}
	}
}

// dispatch runs one state machine operation off the event loop.
func (m *Model) dispatch(op operation, call func(context.Context) error) tea.Cmd {
	m.pending++
	parent, timeout := m.ctx, m.config.RequestTimeout

	run := func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		return opDoneMsg{op: op, err: call(ctx)}
	}

	if m.config.EnableAnimations {
		return tea.Batch(run, m.spinner.Tick)
	}
	return run
}

func (m *Model) selectProduct(product model.Product) tea.Cmd {
	machine := m.machine
	return m.dispatch(opSelect, func(ctx context.Context) error {
		return machine.SelectProduct(ctx, product)
	})
}

func (m *Model) insertMoney(denom model.Denomination) tea.Cmd {
	machine := m.machine
	return m.dispatch(opInsert, func(ctx context.Context) error {
		return machine.InsertMoney(ctx, denom)
	})
}

func (m *Model) confirmPurchase() tea.Cmd {
	return m.dispatch(opConfirm, m.machine.ConfirmPurchase)
}

func (m *Model) cancelPurchase() tea.Cmd {
	return m.dispatch(opCancel, m.machine.CancelPurchase)
}

func (m *Model) returnToBrowsing() tea.Cmd {
	return m.dispatch(opReturn, m.machine.ReturnToBrowsing)
}
