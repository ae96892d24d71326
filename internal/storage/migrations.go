package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Purchases journal",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS purchases (
					id TEXT PRIMARY KEY,
					session_id TEXT UNIQUE NOT NULL,
					product_id INTEGER NOT NULL,
					product_name TEXT NOT NULL,
					price INTEGER NOT NULL,
					paid INTEGER NOT NULL,
					change_amount INTEGER NOT NULL,
					remaining_stock INTEGER NOT NULL DEFAULT 0,
					completed_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_purchases_completed_at ON purchases(completed_at)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Store change breakdown with purchases",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE purchases ADD COLUMN change_detail TEXT NOT NULL DEFAULT '[]'`,
			)
		},
	},
	{
		Version:     3,
		Description: "Abandoned sessions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS abandoned_sessions (
					id TEXT PRIMARY KEY,
					session_id TEXT NOT NULL,
					product_id INTEGER NOT NULL,
					product_name TEXT NOT NULL,
					inserted INTEGER NOT NULL DEFAULT 0,
					reason TEXT NOT NULL CHECK (reason IN ('cancelled', 'returned', 'reselected')),
					abandoned_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_abandoned_at ON abandoned_sessions(abandoned_at)`,
				`CREATE INDEX idx_abandoned_inserted ON abandoned_sessions(inserted) WHERE inserted > 0`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (j *SQLiteJournal) SchemaVersion(ctx context.Context) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	db, err := j.conn()
	if err != nil {
		return 0, err
	}

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate brings the schema up to ExpectedSchemaVersion.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := j.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		err := j.withTx(ctx, func(tx *sql.Tx) error {
			if upErr := migration.Up(tx); upErr != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
			}
			if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
				return fmt.Errorf("failed to update schema version: %w", execErr)
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := j.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("journal schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
