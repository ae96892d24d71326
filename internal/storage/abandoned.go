package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
)

// RecordAbandoned stores a session that was left without confirming.
func (j *SQLiteJournal) RecordAbandoned(ctx context.Context, record *model.AbandonedSession) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAbandoned(record); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = j.newID()
	}

	return j.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO abandoned_sessions (
				id, session_id, product_id, product_name, inserted, reason, abandoned_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, record.ID, record.SessionID, record.ProductID, record.ProductName,
			record.Inserted, string(record.Reason), record.AbandonedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert abandoned session: %w", err)
		}
		return nil
	})
}

// ListAbandoned returns abandoned sessions newest first.
func (j *SQLiteJournal) ListAbandoned(ctx context.Context, filter service.JournalFilter) ([]model.AbandonedSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	query, args := buildListQuery(`
		SELECT id, session_id, product_id, product_name, inserted, reason, abandoned_at
		FROM abandoned_sessions`, "abandoned_at", filter)

	j.mu.RLock()
	defer j.mu.RUnlock()

	db, err := j.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query abandoned sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.AbandonedSession
	for rows.Next() {
		var (
			record model.AbandonedSession
			reason string
		)
		if err := rows.Scan(&record.ID, &record.SessionID, &record.ProductID, &record.ProductName,
			&record.Inserted, &reason, &record.AbandonedAt); err != nil {
			return nil, fmt.Errorf("failed to scan abandoned session: %w", err)
		}
		record.Reason = model.AbandonReason(reason)
		records = append(records, record)
	}

	return records, rows.Err()
}

// UnreleasedFunds sums the money left in abandoned sessions since the given filter bound.
func (j *SQLiteJournal) UnreleasedFunds(ctx context.Context, filter service.JournalFilter) (int, error) {
	records, err := j.ListAbandoned(ctx, service.JournalFilter{Since: filter.Since})
	if err != nil {
		return 0, err
	}
	total := 0
	for _, r := range records {
		total += r.Inserted
	}
	return total, nil
}
