package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/blue-coffee-vending/internal/catalog"
	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/session"
	"github.com/Veraticus/blue-coffee-vending/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Model holds the kiosk UI state. Purchase state lives in the session
// machine; the model only keeps what the screen needs around it.
type Model struct {
	ctx         context.Context
	theme       themes.Theme
	catalogErr  error
	machine     *session.Machine
	keymap      KeyMap
	notice      string
	config      Config
	groups      []catalog.Group
	products    []model.Product
	stock       []model.MoneyStock
	help        help.Model
	spinner     spinner.Model
	denoms      []model.Denomination
	width       int
	height      int
	cursor      int
	denomCursor int
	pending     int
	loading     bool
	showHelp    bool
	quitting    bool
}

// newModel creates a new model with the given configuration.
func newModel(ctx context.Context, cfg Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = cfg.Theme.StatusInfo

	h := help.New()
	h.ShowAll = cfg.ShowHelp

	return Model{
		ctx:      ctx,
		config:   cfg,
		theme:    cfg.Theme,
		machine:  cfg.Machine,
		keymap:   DefaultKeyMap(),
		help:     h,
		spinner:  s,
		denoms:   model.Denominations(),
		width:    cfg.Width,
		height:   cfg.Height,
		loading:  true,
		showHelp: cfg.ShowHelp,
	}
}

// Init starts loading the catalog and money stock.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadCatalog(), m.loadMoneyStock()}
	if m.config.EnableAnimations {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case catalogLoadedMsg:
		m.loading = false
		m.catalogErr = msg.err
		if msg.err != nil {
			common.LogError(msg.err, "Failed to load catalog", nil)
			return m, nil
		}
		m.setProducts(msg.products)
		return m, nil

	case moneyStockLoadedMsg:
		if msg.err != nil {
			common.LogError(msg.err, "Failed to load money stock", nil)
			return m, nil
		}
		m.stock = msg.stock
		return m, nil

	case opDoneMsg:
		return m.handleOpDone(msg)

	case spinner.TickMsg:
		if !m.loading && !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.loading && len(m.products) == 0 {
		return m.renderLoading()
	}
	return m.wrapWithBorder(m.renderContent())
}

// busy reports whether any operation is outstanding, counting commands that
// were dispatched but have not reached the machine yet.
func (m Model) busy() bool {
	return m.pending > 0 || (m.machine != nil && m.machine.Busy())
}

// sessionView returns the machine projection with the UI's own pending
// commands folded into the affordances.
func (m Model) sessionView() session.View {
	if m.machine == nil {
		return session.View{Phase: session.PhaseBrowsing}
	}
	v := m.machine.View()
	if m.pending > 0 {
		v.Busy = true
		v.CanSelect = false
		v.CanInsert = false
		v.CanConfirm = false
		v.CanCancel = false
	}
	return v
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.ForceQuit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	}

	m.notice = ""
	v := m.sessionView()

	switch v.Phase {
	case session.PhaseSelecting:
		return m.handlePaymentKey(msg, v)
	case session.PhaseCompleted:
		return m.handleReceiptKey(msg, v)
	default:
		return m.handleCatalogKey(msg, v)
	}
}

func (m Model) handleCatalogKey(msg tea.KeyMsg, v session.View) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.products)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keymap.Refresh):
		m.loading = true
		return m, tea.Batch(m.loadCatalog(), m.loadMoneyStock())
	case key.Matches(msg, m.keymap.Select):
		if !v.CanSelect || len(m.products) == 0 {
			return m, nil
		}
		product := m.products[m.cursor]
		if !product.InStock() {
			m.notice = fmt.Sprintf("%s is sold out", product.Name)
			return m, nil
		}
		m.denomCursor = 0
		cmd := m.selectProduct(product)
		return m, cmd
	}
	return m, nil
}

func (m Model) handlePaymentKey(msg tea.KeyMsg, v session.View) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Left):
		if m.denomCursor > 0 {
			m.denomCursor--
		}
	case key.Matches(msg, m.keymap.Right):
		if m.denomCursor < len(m.denoms)-1 {
			m.denomCursor++
		}
	case key.Matches(msg, m.keymap.Insert):
		idx := int(msg.Runes[0] - '1')
		if idx < 0 || idx >= len(m.denoms) {
			return m, nil
		}
		m.denomCursor = idx
		if v.CanInsert {
			cmd := m.insertMoney(m.denoms[idx])
			return m, cmd
		}
	case key.Matches(msg, m.keymap.Select):
		if v.CanInsert {
			cmd := m.insertMoney(m.denoms[m.denomCursor])
			return m, cmd
		}
		if v.CanConfirm {
			cmd := m.confirmPurchase()
			return m, cmd
		}
	case key.Matches(msg, m.keymap.Confirm):
		if v.CanConfirm {
			cmd := m.confirmPurchase()
			return m, cmd
		}
		if !v.Busy {
			m.notice = session.Message(session.ErrInsufficientFunds)
		}
	case key.Matches(msg, m.keymap.Cancel):
		if v.CanCancel {
			cmd := m.cancelPurchase()
			return m, cmd
		}
	case key.Matches(msg, m.keymap.Back):
		if v.CanReturn {
			cmd := m.returnToBrowsing()
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) handleReceiptKey(msg tea.KeyMsg, v session.View) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Select), key.Matches(msg, m.keymap.Back):
		if v.CanReturn && m.pending == 0 {
			cmd := m.returnToBrowsing()
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	if m.pending > 0 {
		m.pending--
	}

	err := msg.err
	switch {
	case err == nil:
	case errors.Is(err, session.ErrStaleResponse):
		common.LogDebug("Ignored stale response", common.Fields{"op": msg.op.String()})
		err = nil
	case m.machine != nil && m.machine.Err() == nil:
		// Rejected locally, so the machine has nothing to show.
		m.notice = session.Message(err)
	}

	// Stock and change reserves move after a purchase.
	if msg.op == opReturn && err == nil {
		m.loading = true
		return m, tea.Batch(m.loadCatalog(), m.loadMoneyStock())
	}
	return m, nil
}

// setProducts regroups the catalog and keeps the cursor on the same product.
func (m *Model) setProducts(products []model.Product) {
	var selectedID int
	if m.cursor < len(m.products) {
		selectedID = m.products[m.cursor].ID
	}

	m.groups = catalog.GroupProducts(products)
	m.products = catalog.Flatten(m.groups)

	m.cursor = 0
	for i, p := range m.products {
		if p.ID == selectedID {
			m.cursor = i
			break
		}
	}
}
