// Package config loads application settings from viper and the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/spf13/viper"
)

const (
	// DefaultBackendURL is where the vending backend listens in a local setup.
	DefaultBackendURL = "http://localhost:8000"
	// DefaultJournalPath is the SQLite journal location before expansion.
	DefaultJournalPath = "$HOME/.local/share/vend/journal.db"
	// DefaultKioskLogPath keeps kiosk logs off the terminal the TUI draws on.
	DefaultKioskLogPath = "$HOME/.local/share/vend/vend.log"
)

// BackendConfig describes how to reach the vending backend.
type BackendConfig struct {
	BaseURL        string
	AbortPath      string
	Timeout        time.Duration
	CatalogRetries int
	AbortOnCancel  bool
}

// JournalConfig describes the local purchase journal.
type JournalConfig struct {
	Path    string
	Enabled bool
}

// DefaultBackendConfig returns the settings used when nothing is configured.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		BaseURL:        DefaultBackendURL,
		Timeout:        10 * time.Second,
		CatalogRetries: 3,
	}
}

// Validate checks that the backend settings are usable.
func (c BackendConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: backend.url %q must be an absolute URL", common.ErrInvalidConfig, c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: backend.url scheme %q", common.ErrInvalidConfig, u.Scheme)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: backend.timeout must be positive", common.ErrInvalidConfig)
	}
	if c.AbortPath != "" && !strings.HasPrefix(c.AbortPath, "/") {
		return fmt.Errorf("%w: backend.abort_path must start with /", common.ErrInvalidConfig)
	}
	if c.AbortOnCancel && c.AbortPath == "" {
		return fmt.Errorf("%w: session.abort_on_cancel requires backend.abort_path", common.ErrMissingConfig)
	}
	return nil
}

// LoadBackendConfig loads backend settings with this precedence:
// 1. Viper configuration (config file or VEND_ env vars)
// 2. VENDING_API_URL for the base address
// 3. Default values
func LoadBackendConfig() (*BackendConfig, error) {
	cfg := DefaultBackendConfig()

	if v := viper.GetString("backend.url"); v != "" {
		cfg.BaseURL = v
	} else if v := os.Getenv("VENDING_API_URL"); v != "" {
		cfg.BaseURL = v
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if viper.IsSet("backend.timeout") {
		cfg.Timeout = viper.GetDuration("backend.timeout")
	}
	if viper.IsSet("backend.catalog_retries") {
		cfg.CatalogRetries = viper.GetInt("backend.catalog_retries")
	}
	cfg.AbortPath = viper.GetString("backend.abort_path")
	cfg.AbortOnCancel = viper.GetBool("session.abort_on_cancel")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadJournalConfig loads journal settings. The journal is on unless disabled explicitly.
func LoadJournalConfig() JournalConfig {
	cfg := JournalConfig{
		Path:    DefaultJournalPath,
		Enabled: true,
	}
	if v := viper.GetString("journal.path"); v != "" {
		cfg.Path = v
	}
	if viper.IsSet("journal.enabled") {
		cfg.Enabled = viper.GetBool("journal.enabled")
	}
	cfg.Path = ExpandPath(cfg.Path)
	return cfg
}

// ExpandPath expands a leading ~ and any $VAR references in a file path.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return path
	case path == "~" || strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}
