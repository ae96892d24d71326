package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/blue-coffee-vending/internal/common"
	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
	"github.com/mattn/go-sqlite3"
)

type changeItemRow struct {
	Denom int `json:"denom"`
	Qty   int `json:"qty"`
}

// RecordPurchase stores a completed purchase. A session can only be recorded once.
func (j *SQLiteJournal) RecordPurchase(ctx context.Context, record *model.PurchaseRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePurchase(record); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = j.newID()
	}

	rows := make([]changeItemRow, 0, len(record.ChangeDetail))
	for _, item := range record.ChangeDetail {
		rows = append(rows, changeItemRow{Denom: int(item.Denom), Qty: item.Qty})
	}
	detail, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal change detail: %w", err)
	}

	return j.withTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, `
			INSERT INTO purchases (
				id, session_id, product_id, product_name, price, paid,
				change_amount, change_detail, remaining_stock, completed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, record.ID, record.SessionID, record.ProductID, record.ProductName, record.Price, record.Paid,
			record.Change, string(detail), record.RemainingStock, record.CompletedAt.UTC())
		if isUniqueViolation(execErr) {
			return fmt.Errorf("%w: purchase for session %s", common.ErrDuplicateEntry, record.SessionID)
		}
		if execErr != nil {
			return fmt.Errorf("failed to insert purchase: %w", execErr)
		}
		return nil
	})
}

// ListPurchases returns purchases newest first.
func (j *SQLiteJournal) ListPurchases(ctx context.Context, filter service.JournalFilter) ([]model.PurchaseRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	query, args := buildListQuery(purchaseColumns, "completed_at", filter)

	j.mu.RLock()
	defer j.mu.RUnlock()

	db, err := j.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.PurchaseRecord
	for rows.Next() {
		record, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

// GetPurchaseBySession returns the purchase recorded for sessionID.
func (j *SQLiteJournal) GetPurchaseBySession(ctx context.Context, sessionID string) (*model.PurchaseRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	db, err := j.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, purchaseColumns+` WHERE session_id = ?`, sessionID)
	record, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: purchase for session %s", common.ErrNotFound, sessionID)
	}
	return record, err
}

const purchaseColumns = `
		SELECT id, session_id, product_id, product_name, price, paid,
			change_amount, change_detail, remaining_stock, completed_at
		FROM purchases`

type scanner interface {
	Scan(dest ...any) error
}

func scanPurchase(s scanner) (*model.PurchaseRecord, error) {
	var (
		record model.PurchaseRecord
		detail string
	)
	err := s.Scan(&record.ID, &record.SessionID, &record.ProductID, &record.ProductName,
		&record.Price, &record.Paid, &record.Change, &detail, &record.RemainingStock, &record.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase: %w", err)
	}

	var items []changeItemRow
	if err := json.Unmarshal([]byte(detail), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal change detail for %s: %w", record.ID, err)
	}
	for _, item := range items {
		record.ChangeDetail = append(record.ChangeDetail, model.ChangeItem{Denom: model.Denomination(item.Denom), Qty: item.Qty})
	}
	return &record, nil
}

// buildListQuery appends the filter's time bound, newest-first ordering and limit.
func buildListQuery(base, timeColumn string, filter service.JournalFilter) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(base)
	if filter.Since != nil {
		sb.WriteString(" WHERE " + timeColumn + " >= ?")
		args = append(args, filter.Since.UTC())
	}
	sb.WriteString(" ORDER BY " + timeColumn + " DESC, rowid DESC")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}
	return sb.String(), args
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
