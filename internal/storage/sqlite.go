package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements service.Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	newID  func() string
	dbPath string
	mu     sync.RWMutex
	closed bool
}

var _ service.Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens (and creates if needed) the journal database at dbPath.
// Call Migrate before use.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	return &SQLiteJournal{
		db:     db,
		dbPath: dbPath,
		newID:  uuid.NewString,
	}, nil
}

// Path returns the database file the journal writes to.
func (j *SQLiteJournal) Path() string {
	return j.dbPath
}

// Close closes the database connection. Further calls fail with common.ErrJournalClosed.
func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}

// conn returns the database handle if the journal is still open. The caller
// must hold j.mu.
func (j *SQLiteJournal) conn() (*sql.DB, error) {
	if j.closed {
		return nil, common.ErrJournalClosed
	}
	return j.db, nil
}

// withTx runs fn inside a transaction that is committed when fn succeeds.
func (j *SQLiteJournal) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	db, err := j.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
