// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"fmt"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/charmbracelet/lipgloss"
)

var (
	// PrimaryColor is the main theme color (coffee blue).
	PrimaryColor = lipgloss.Color("#2563EB")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#10B981") // Green
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#F59E0B") // Amber
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#60A5FA") // Light blue
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SubtitleStyle is used for secondary headings.
	SubtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SubtleColor)

	// Status line styles.
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// SoldOutStyle marks products with no stock.
	SoldOutStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Strikethrough(true)
)

// Icons used in command output.
const (
	SuccessIcon = "✓"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	CoffeeIcon  = "☕"
	CoinIcon    = "🪙"
	NoteIcon    = "💵"
	ReceiptIcon = "🧾"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the coffee icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(CoffeeIcon + " " + title)
}

// FormatAmount renders an amount in the machine currency, e.g. "25 THB".
func FormatAmount(amount int) string {
	return fmt.Sprintf("%d %s", amount, model.Currency)
}

// MoneyIcon returns the icon for a coin or note.
func MoneyIcon(kind model.MoneyKind) string {
	if kind == model.KindCoin {
		return CoinIcon
	}
	return NoteIcon
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	boxContent := lipgloss.JoinVertical(
		lipgloss.Left,
		boxTitle,
		content,
	)

	return BoxStyle.Render(boxContent)
}
