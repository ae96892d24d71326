package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/config"
	"github.com/Veraticus/blue-coffee-vending/internal/session"
	"github.com/Veraticus/blue-coffee-vending/internal/storage"
	"github.com/Veraticus/blue-coffee-vending/internal/vending"
)

// newClient builds the backend client from configuration.
func newClient() (*vending.Client, *config.BackendConfig, error) {
	cfg, err := config.LoadBackendConfig()
	if err != nil {
		return nil, nil, err
	}

	client, err := vending.NewClient(*cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// initJournal opens and migrates the purchase journal. It returns nil when the
// journal is disabled.
func initJournal(ctx context.Context) (*storage.SQLiteJournal, error) {
	cfg := config.LoadJournalConfig()
	if !cfg.Enabled {
		return nil, nil
	}

	journal, err := storage.NewSQLiteJournal(cfg.Path)
	if err != nil {
		return nil, err
	}

	if err := journal.Migrate(ctx); err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return journal, nil
}

// newMachine wires the session state machine to the client and journal.
func newMachine(client *vending.Client, cfg *config.BackendConfig, journal *storage.SQLiteJournal) *session.Machine {
	opts := []session.Option{
		session.WithAborter(client),
		session.WithAbortOnCancel(cfg.AbortOnCancel),
	}
	if journal != nil {
		opts = append(opts, session.WithJournal(journal))
	}
	return session.NewMachine(client, opts...)
}

// userError turns backend failures into a message fit for the terminal.
func userError(action string, err error) error {
	if errors.Is(err, common.ErrBackendUnavailable) {
		return common.NewUserError(fmt.Sprintf("Cannot reach the vending backend while trying to %s", action), err)
	}
	return common.NewUserError(fmt.Sprintf("Failed to %s: %s", action, session.Message(err)), err)
}
