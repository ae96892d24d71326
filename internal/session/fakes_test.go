package session

import (
	"context"
	"errors"
	"sync"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
	"github.com/Veraticus/blue-coffee-vending/internal/service"
)

// fakeClient is a scriptable service.VendingClient. Unset hooks succeed with
// backend-like defaults: a fixed session id, a running total and a confirm
// computed from that total.
type fakeClient struct {
	selectFn  func(ctx context.Context, productID int) (string, error)
	insertFn  func(ctx context.Context, sessionID string, denom model.Denomination) (int, error)
	confirmFn func(ctx context.Context, sessionID string) (model.TransactionResult, error)
	abortFn   func(ctx context.Context, sessionID string) error

	mu       sync.Mutex
	totals   map[string]int
	products map[int]model.Product
	calls    []string
}

func newFakeClient(products ...model.Product) *fakeClient {
	f := &fakeClient{
		totals:   make(map[string]int),
		products: make(map[int]model.Product),
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) ListProducts(_ context.Context, _ bool) ([]model.Product, error) {
	out := make([]model.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeClient) ListMoneyStock(_ context.Context) ([]model.MoneyStock, error) {
	return nil, nil
}

func (f *fakeClient) SelectProduct(ctx context.Context, productID int) (string, error) {
	f.record("select")
	if f.selectFn != nil {
		return f.selectFn(ctx, productID)
	}
	return "session-1", nil
}

func (f *fakeClient) InsertMoney(ctx context.Context, sessionID string, denom model.Denomination) (int, error) {
	f.record("insert")
	if f.insertFn != nil {
		return f.insertFn(ctx, sessionID, denom)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals[sessionID] += int(denom)
	return f.totals[sessionID], nil
}

func (f *fakeClient) Confirm(ctx context.Context, sessionID string) (model.TransactionResult, error) {
	f.record("confirm")
	if f.confirmFn != nil {
		return f.confirmFn(ctx, sessionID)
	}
	return model.TransactionResult{Status: model.PurchaseStatusSuccess}, nil
}

func (f *fakeClient) AbortSession(ctx context.Context, sessionID string) error {
	f.record("abort " + sessionID)
	if f.abortFn != nil {
		return f.abortFn(ctx, sessionID)
	}
	return nil
}

var _ service.VendingClient = (*fakeClient)(nil)
var _ service.SessionAborter = (*fakeClient)(nil)

// memoryJournal is an in-memory service.Journal.
type memoryJournal struct {
	err       error
	purchases []model.PurchaseRecord
	abandoned []model.AbandonedSession
	mu        sync.Mutex
}

func (j *memoryJournal) RecordPurchase(_ context.Context, record *model.PurchaseRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.purchases = append(j.purchases, *record)
	return nil
}

func (j *memoryJournal) RecordAbandoned(_ context.Context, record *model.AbandonedSession) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.abandoned = append(j.abandoned, *record)
	return nil
}

func (j *memoryJournal) ListPurchases(_ context.Context, _ service.JournalFilter) ([]model.PurchaseRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]model.PurchaseRecord(nil), j.purchases...), nil
}

func (j *memoryJournal) ListAbandoned(_ context.Context, _ service.JournalFilter) ([]model.AbandonedSession, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]model.AbandonedSession(nil), j.abandoned...), nil
}

func (j *memoryJournal) Close() error { return nil }

// backendError mimics a structured backend rejection.
type backendError struct {
	detail string
}

func (e *backendError) Error() string  { return "backend rejected request (status 400): " + e.detail }
func (e *backendError) Detail() string { return e.detail }

var errConnRefused = errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")
