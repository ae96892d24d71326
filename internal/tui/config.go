package tui

import (
	"time"

	"github.com/Veraticus/blue-coffee-vending/internal/service"
	"github.com/Veraticus/blue-coffee-vending/internal/session"
	"github.com/Veraticus/blue-coffee-vending/internal/tui/themes"
)

// Config holds TUI configuration.
type Config struct {
	Theme            themes.Theme
	Client           service.VendingClient
	Machine          *session.Machine
	RequestTimeout   time.Duration
	Width            int
	Height           int
	ShowSoldOut      bool
	EnableAnimations bool
	ShowHelp         bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:            themes.Default,
		RequestTimeout:   15 * time.Second,
		Width:            80,
		Height:           24,
		ShowSoldOut:      true,
		EnableAnimations: true,
	}
}

// WithClient sets the backend client used for catalog reads.
func WithClient(client service.VendingClient) Option {
	return func(c *Config) {
		c.Client = client
	}
}

// WithMachine sets the session state machine that owns the purchase.
func WithMachine(machine *session.Machine) Option {
	return func(c *Config) {
		c.Machine = machine
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithRequestTimeout bounds each backend call made from the UI.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.RequestTimeout = d
		}
	}
}

// WithSoldOut controls whether sold-out products are listed.
func WithSoldOut(show bool) Option {
	return func(c *Config) {
		c.ShowSoldOut = show
	}
}

// WithAnimations toggles the busy spinner animation.
func WithAnimations(enabled bool) Option {
	return func(c *Config) {
		c.EnableAnimations = enabled
	}
}
