package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/blue-coffee-vending/internal/change"
	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/session"
	"github.com/charmbracelet/lipgloss"
)

const title = "Blue Coffee Vending"

// renderLoading renders the loading screen.
func (m Model) renderLoading() string {
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		m.theme.Title.Render(title),
		"",
		m.spinner.View(),
		"",
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render("Loading products..."),
	)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		content,
	)
}

func (m Model) renderContent() string {
	v := m.sessionView()

	var body string
	switch v.Phase {
	case session.PhaseSelecting:
		body = m.renderPayment(v)
	case session.PhaseCompleted:
		body = m.renderReceipt(v)
	default:
		body = m.renderCatalog(v)
	}

	parts := []string{m.renderHeader(v)}
	if msg := m.errorLine(v); msg != "" {
		parts = append(parts, m.theme.StatusError.Render("✗ "+msg))
	}
	if m.notice != "" {
		parts = append(parts, m.theme.StatusWarning.Render("! "+m.notice))
	}
	parts = append(parts, "", body)

	if m.showHelp {
		parts = append(parts, "", m.renderHelp(v))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) errorLine(v session.View) string {
	if v.Error != "" {
		return v.Error
	}
	if m.catalogErr != nil && v.Phase == session.PhaseBrowsing {
		return "Could not load products: " + session.Message(m.catalogErr)
	}
	return ""
}

func (m Model) renderHeader(v session.View) string {
	left := m.theme.Title.UnsetMarginBottom().Render("☕ " + title)
	if v.Busy || m.loading {
		left += " " + m.spinner.View()
	}
	return left
}

// renderCatalog renders grouped products with the cursor.
func (m Model) renderCatalog(v session.View) string {
	if len(m.products) == 0 {
		if m.loading {
			return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("Loading products...")
		}
		return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("No products available. Press r to refresh.")
	}

	var b strings.Builder
	index := 0
	for _, group := range m.groups {
		b.WriteString(m.theme.Subtitle.UnsetMarginBottom().Render(fmt.Sprintf("%s %s", group.Icon, group.Label)))
		b.WriteString("\n")
		for _, p := range group.Products {
			line := fmt.Sprintf("  %-4s %-24s %8s", p.SlotCode, truncate(p.Name, 24), formatAmount(p.Price))
			if p.InStock() {
				line += lipgloss.NewStyle().Foreground(m.theme.Muted).Render(fmt.Sprintf("  %d left", p.Stock))
			} else {
				line = lipgloss.NewStyle().Foreground(m.theme.Muted).Strikethrough(true).Render(line) +
					m.theme.StatusError.Render("  sold out")
			}

			if index == m.cursor {
				style := m.theme.Selected
				if !v.CanSelect {
					style = m.theme.Highlighted
				}
				line = style.Render("›" + strings.TrimPrefix(line, " "))
			}
			b.WriteString(line)
			b.WriteString("\n")
			index++
		}
		b.WriteString("\n")
	}

	if len(m.stock) > 0 {
		b.WriteString(m.renderMoneyStock())
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderMoneyStock() string {
	chips := make([]string, 0, len(m.stock))
	for _, s := range m.stock {
		label := fmt.Sprintf("%d×%d", int(s.Denom), s.Quantity)
		style := m.theme.DenominationStyle(s.Denom)
		if s.Quantity == 0 {
			style = lipgloss.NewStyle().Foreground(m.theme.Muted)
		}
		chips = append(chips, style.Render(label))
	}
	return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("Change reserve: ") + strings.Join(chips, " ")
}

// renderPayment renders the money insertion screen.
func (m Model) renderPayment(v session.View) string {
	if v.Product == nil {
		return ""
	}
	p := v.Product

	summary := lipgloss.JoinVertical(
		lipgloss.Left,
		m.theme.Bold.Render(fmt.Sprintf("%s  %s", p.SlotCode, p.Name)),
		fmt.Sprintf("Price     %s", formatAmount(p.Price)),
		fmt.Sprintf("Inserted  %s", m.theme.StatusSuccess.Render(formatAmount(v.Inserted))),
		fmt.Sprintf("Remaining %s", formatAmount(v.Remaining())),
	)

	chips := make([]string, 0, len(m.denoms))
	for i, d := range m.denoms {
		label := fmt.Sprintf(" %d:%s %d ", i+1, kindGlyph(d.Kind()), int(d))
		style := m.theme.DenominationStyle(d).Padding(0, 0)
		switch {
		case !v.CanInsert:
			style = lipgloss.NewStyle().Foreground(m.theme.Muted)
		case i == m.denomCursor:
			style = style.Reverse(true).Bold(true)
		}
		chips = append(chips, style.Render(label))
	}

	confirm := lipgloss.NewStyle().Foreground(m.theme.Muted).Render("[c] Confirm purchase")
	if v.CanConfirm {
		confirm = m.theme.StatusSuccess.Render("[c] Confirm purchase")
	}
	cancel := lipgloss.NewStyle().Foreground(m.theme.Muted).Render("[x] Cancel")
	if v.CanCancel {
		cancel = m.theme.StatusWarning.Render("[x] Cancel")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.theme.RoundedBox.Render(summary),
		"",
		"Insert money:",
		lipgloss.JoinHorizontal(lipgloss.Top, chips...),
		"",
		confirm+"   "+cancel,
	)
}

// renderReceipt renders the completed purchase and its change.
func (m Model) renderReceipt(v session.View) string {
	if v.Result == nil {
		return ""
	}
	r := v.Result

	lines := []string{
		m.theme.StatusSuccess.Render("✓ Purchase complete"),
		"",
		m.theme.Bold.Render(r.Product.Name),
		fmt.Sprintf("Paid    %s", formatAmount(r.Paid)),
		fmt.Sprintf("Price   %s", formatAmount(r.Price)),
		fmt.Sprintf("Change  %s", formatAmount(r.Change)),
	}

	if r.HasChange() {
		lines = append(lines, "", "Please collect your change:")
		for _, row := range change.Render(r.ChangeDetail) {
			glyph := m.theme.DenominationStyle(row.Denom).Render(kindGlyph(row.Kind))
			lines = append(lines, fmt.Sprintf("  %s %s", glyph, row.String()))
		}
	}

	lines = append(lines, "",
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render(fmt.Sprintf("%d left in stock", r.RemainingStock)),
		"",
		m.theme.StatusInfo.Render("Press Enter to buy another"),
	)

	return m.theme.RoundedBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderHelp(v session.View) string {
	if v.Phase == session.PhaseSelecting && !m.help.ShowAll {
		return m.help.View(paymentHelp{k: m.keymap})
	}
	return m.help.View(m.keymap)
}

// wrapWithBorder adds a border and status bar around content.
func (m Model) wrapWithBorder(content string) string {
	fullContent := lipgloss.JoinVertical(
		lipgloss.Left,
		content,
		"",
		m.renderStatusBar(),
	)

	return m.theme.BorderedBox.
		Width(m.width).
		Render(fullContent)
}

// renderStatusBar renders the bottom status bar.
func (m Model) renderStatusBar() string {
	v := m.sessionView()

	var left string
	switch v.Phase {
	case session.PhaseSelecting:
		left = "Payment"
	case session.PhaseCompleted:
		left = "Receipt"
	default:
		left = "Browse"
	}

	var center string
	if v.SessionID != "" {
		center = "session " + shortID(v.SessionID)
	}
	right := "? Help"

	totalWidth := m.width - 6
	spacing := totalWidth - lipgloss.Width(left) - lipgloss.Width(center) - lipgloss.Width(right)
	if spacing < 2 {
		spacing = 2
	}
	leftPad := spacing / 2
	rightPad := spacing - leftPad

	return fmt.Sprintf("%s%s%s%s%s",
		m.theme.StatusInfo.Render(left),
		strings.Repeat(" ", leftPad),
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render(center),
		strings.Repeat(" ", rightPad),
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render(right),
	)
}

func formatAmount(amount int) string {
	return fmt.Sprintf("%d %s", amount, model.Currency)
}

func kindGlyph(kind model.MoneyKind) string {
	if kind == model.KindCoin {
		return "●"
	}
	return "▭"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
