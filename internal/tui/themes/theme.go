// Package themes defines the colour palettes used by the kiosk.
package themes

import (
	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the visual style for the TUI.
type Theme struct {
	Denominations map[model.Denomination]lipgloss.Color
	Selected      lipgloss.Style
	StatusInfo    lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	StatusSuccess lipgloss.Style
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Normal        lipgloss.Style
	Bold          lipgloss.Style
	RoundedBox    lipgloss.Style
	Highlighted   lipgloss.Style
	BorderedBox   lipgloss.Style
	Primary       lipgloss.Color
	Muted         lipgloss.Color
	Border        lipgloss.Color
	Foreground    lipgloss.Color
	Error         lipgloss.Color
	Warning       lipgloss.Color
	Success       lipgloss.Color
	Info          lipgloss.Color
}

// palette is the handful of colours a theme is derived from.
type palette struct {
	primary, foreground, subtle, highlight lipgloss.Color
	border, muted                          lipgloss.Color
	success, warning, errorColor, info     lipgloss.Color
	selectedText                           lipgloss.Color
}

// denominationColors follows the colours printed on Thai coins and notes.
var denominationColors = map[model.Denomination]lipgloss.Color{
	1:    lipgloss.Color("#b45309"),
	5:    lipgloss.Color("#9ca3af"),
	10:   lipgloss.Color("#eab308"),
	20:   lipgloss.Color("#16a34a"),
	50:   lipgloss.Color("#3b82f6"),
	100:  lipgloss.Color("#ef4444"),
	500:  lipgloss.Color("#a855f7"),
	1000: lipgloss.Color("#78350f"),
}

func newTheme(p palette) Theme {
	return Theme{
		Denominations: denominationColors,
		Primary:       p.primary,
		Muted:         p.muted,
		Border:        p.border,
		Foreground:    p.foreground,
		Error:         p.errorColor,
		Warning:       p.warning,
		Success:       p.success,
		Info:          p.info,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.primary).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.subtle).
			MarginBottom(1),
		Normal: lipgloss.NewStyle().
			Foreground(p.foreground),
		Bold: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.foreground),
		Selected: lipgloss.NewStyle().
			Background(p.primary).
			Foreground(p.selectedText).
			Bold(true),
		Highlighted: lipgloss.NewStyle().
			Background(p.highlight).
			Foreground(p.foreground),

		BorderedBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(p.border).
			Padding(0, 1),
		RoundedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Padding(0, 2),

		StatusSuccess: lipgloss.NewStyle().Foreground(p.success).Bold(true),
		StatusWarning: lipgloss.NewStyle().Foreground(p.warning).Bold(true),
		StatusError:   lipgloss.NewStyle().Foreground(p.errorColor).Bold(true),
		StatusInfo:    lipgloss.NewStyle().Foreground(p.info).Bold(true),
	}
}

// Default is the default theme.
var Default = newTheme(palette{
	primary:      lipgloss.Color("#2563eb"),
	foreground:   lipgloss.Color("#fafafa"),
	subtle:       lipgloss.Color("#a3a3a3"),
	highlight:    lipgloss.Color("#404040"),
	border:       lipgloss.Color("#404040"),
	muted:        lipgloss.Color("#737373"),
	success:      lipgloss.Color("#10b981"),
	warning:      lipgloss.Color("#f59e0b"),
	errorColor:   lipgloss.Color("#ef4444"),
	info:         lipgloss.Color("#3b82f6"),
	selectedText: lipgloss.Color("#fafafa"),
})

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = newTheme(palette{
	primary:      lipgloss.Color("#89b4fa"),
	foreground:   lipgloss.Color("#cdd6f4"),
	subtle:       lipgloss.Color("#a6adc8"),
	highlight:    lipgloss.Color("#45475a"),
	border:       lipgloss.Color("#45475a"),
	muted:        lipgloss.Color("#6c7086"),
	success:      lipgloss.Color("#a6e3a1"),
	warning:      lipgloss.Color("#f9e2af"),
	errorColor:   lipgloss.Color("#f38ba8"),
	info:         lipgloss.Color("#89dceb"),
	selectedText: lipgloss.Color("#1e1e2e"),
})

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}

// DenominationStyle returns the style for a coin or note of value d.
func (t Theme) DenominationStyle(d model.Denomination) lipgloss.Style {
	color, ok := t.Denominations[d]
	if !ok {
		color = t.Foreground
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true)
}
