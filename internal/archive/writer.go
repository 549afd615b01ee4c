package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/venuepulse/notify/internal/protocol"
)

// Source delivers forwarded frames. The dispatcher satisfies this.
type Source interface {
	Messages() (<-chan string, func())
}

// batcher is the subset of pgxpool.Pool the writer uses.
type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Writer consumes forwarded frames, keeps the notification ones, and writes
// them to the notifications table in batches.
type Writer struct {
	cfg    Config
	logger *slog.Logger

	// Input from the dispatcher
	source Source

	// Database
	db batcher

	// Batching
	batch       []notificationRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics Metrics
}

// NewWriter creates a new archive Writer.
func NewWriter(cfg Config, source Source, db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:    cfg,
		source: source,
		db:     db,
		logger: logger,
		batch:  make([]notificationRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming frames and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	msgs, cancel := w.source.Messages()

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop(msgs, cancel)

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("archive writer stopped")
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
	}

	// Final flush. The run context is already cancelled, so the tail batch
	// goes out on the caller's shutdown context.
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads forwarded frames and accumulates batches.
func (w *Writer) consumeLoop(msgs <-chan string, cancel func()) {
	defer w.wg.Done()
	defer cancel()

	for {
		select {
		case <-w.ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			w.handleFrame(raw)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleFrame parses and adds a frame to the batch. Frames that are not
// notifications are counted and skipped.
func (w *Writer) handleFrame(raw string) {
	n, err := protocol.ParseNotification([]byte(raw))
	if err != nil {
		w.batchMu.Lock()
		w.metrics.Skipped++
		w.batchMu.Unlock()
		return
	}

	row := w.transform(n)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts a Notification to a notificationRow. Missing ids get a
// generated one so ON CONFLICT still holds across restarts.
func (w *Writer) transform(n protocol.Notification) notificationRow {
	id := n.ID
	if id == "" {
		id = uuid.NewString()
	}
	return notificationRow{
		ID:         id,
		Kind:       n.Kind,
		Title:      n.Title,
		Body:       n.Body,
		VenueID:    n.VenueID,
		EventTs:    n.Timestamp,
		ReceivedAt: time.Now().UnixMilli(),
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]notificationRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed notifications",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []notificationRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO notifications (id, kind, title, body, venue_id, event_ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Kind, r.Title, r.Body, r.VenueID, r.EventTs, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
