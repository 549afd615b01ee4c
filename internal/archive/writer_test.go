package archive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/venuepulse/notify/internal/protocol"
)

// stubSource feeds the writer a frame channel directly.
type stubSource struct {
	ch chan string
}

func (s *stubSource) Messages() (<-chan string, func()) {
	return s.ch, func() {}
}

// fakePool records every SendBatch call and reports success for each
// queued statement.
type fakePool struct {
	mu      sync.Mutex
	ctxErrs []error
	queued  []int
}

func (p *fakePool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	p.queued = append(p.queued, b.Len())
	return &fakeBatchResults{}
}

type fakeBatchResults struct{}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, nil }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error             { return nil }

func TestWriter_Transform(t *testing.T) {
	w := NewWriter(DefaultConfig(), nil, nil, nil)

	n := protocol.Notification{
		Type:      protocol.TypeNotification,
		ID:        "n-123",
		Kind:      "booking",
		Title:     "Booking confirmed",
		Body:      "Table for two at 19:00",
		VenueID:   "venue-9",
		Timestamp: 1705320000000,
	}

	before := time.Now().UnixMilli()
	row := w.transform(n)
	after := time.Now().UnixMilli()

	if row.ID != "n-123" {
		t.Errorf("ID = %s, want n-123", row.ID)
	}
	if row.Kind != "booking" {
		t.Errorf("Kind = %s, want booking", row.Kind)
	}
	if row.Title != "Booking confirmed" {
		t.Errorf("Title = %s, want Booking confirmed", row.Title)
	}
	if row.VenueID != "venue-9" {
		t.Errorf("VenueID = %s, want venue-9", row.VenueID)
	}
	if row.EventTs != 1705320000000 {
		t.Errorf("EventTs = %d, want 1705320000000", row.EventTs)
	}
	if row.ReceivedAt < before || row.ReceivedAt > after {
		t.Errorf("ReceivedAt = %d, want between %d and %d", row.ReceivedAt, before, after)
	}
}

func TestWriter_Transform_GeneratesMissingID(t *testing.T) {
	w := NewWriter(DefaultConfig(), nil, nil, nil)

	row := w.transform(protocol.Notification{Type: protocol.TypeNotification, Kind: "system"})
	if row.ID == "" {
		t.Error("expected generated id for notification without one")
	}

	other := w.transform(protocol.Notification{Type: protocol.TypeNotification, Kind: "system"})
	if other.ID == row.ID {
		t.Error("generated ids should be unique")
	}
}

func TestWriter_HandleFrame_Batching(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 1000 // keep everything buffered, no db in this test
	w := NewWriter(cfg, nil, nil, nil)

	w.handleFrame(`{"type":"notification","id":"a","kind":"booking","timestamp":1}`)
	w.handleFrame(`{"type":"notification","id":"b","kind":"promo","timestamp":2}`)

	w.batchMu.Lock()
	got := len(w.batch)
	w.batchMu.Unlock()
	if got != 2 {
		t.Errorf("batch length = %d, want 2", got)
	}
}

func TestWriter_HandleFrame_SkipsNonNotifications(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 1000
	w := NewWriter(cfg, nil, nil, nil)

	w.handleFrame(`{"type":"subscribe_ack","channel":"venue-1"}`)
	w.handleFrame(`not json at all`)
	w.handleFrame(`{"type":"notification","id":"a","kind":"booking","timestamp":1}`)

	stats := w.Stats()
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", stats.Skipped)
	}

	w.batchMu.Lock()
	got := len(w.batch)
	w.batchMu.Unlock()
	if got != 1 {
		t.Errorf("batch length = %d, want 1", got)
	}
}

func TestWriter_StopFlushesTailBatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 1000
	cfg.FlushInterval = time.Hour

	src := &stubSource{ch: make(chan string)}
	w := NewWriter(cfg, src, nil, nil)
	pool := &fakePool{}
	w.db = pool

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.handleFrame(`{"type":"notification","id":"a","kind":"booking","timestamp":1}`)
	w.handleFrame(`{"type":"notification","id":"b","kind":"promo","timestamp":2}`)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()
	if len(pool.queued) != 1 {
		t.Fatalf("SendBatch called %d times, want 1", len(pool.queued))
	}
	if pool.queued[0] != 2 {
		t.Errorf("final batch queued %d rows, want 2", pool.queued[0])
	}
	// The run context is cancelled by Stop; the tail batch must go out on
	// a live context regardless.
	if pool.ctxErrs[0] != nil {
		t.Errorf("final flush ran on a dead context: %v", pool.ctxErrs[0])
	}

	stats := w.Stats()
	if stats.Inserts != 2 {
		t.Errorf("Inserts = %d, want 2", stats.Inserts)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BatchSize <= 0 {
		t.Errorf("BatchSize = %d, want > 0", cfg.BatchSize)
	}
	if cfg.FlushInterval <= 0 {
		t.Errorf("FlushInterval = %v, want > 0", cfg.FlushInterval)
	}
}
