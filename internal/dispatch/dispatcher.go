package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/venuepulse/notify/internal/connection"
	"github.com/venuepulse/notify/internal/protocol"
	"github.com/venuepulse/notify/internal/stream"
)

// Sender transmits pre-encoded frames back to the server. Satisfied by
// connection.Manager.
type Sender interface {
	SendRaw(data []byte) error
}

// FrameKind classifies an inbound frame by its type discriminator.
type FrameKind int

const (
	KindUnknown FrameKind = iota
	KindPing
	KindSubscribeAck
	KindNotification
)

// Config configures the Message Dispatcher.
type Config struct {
	StreamBufferSize int // Per-subscriber message stream buffer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		StreamBufferSize: 256,
	}
}

// Stats contains runtime counters.
type Stats struct {
	Received      int64
	Forwarded     int64
	Duplicates    int64
	Pings         int64
	Blanks        int64
	SubscribeAcks int64
}

// Dispatcher classifies and deduplicates inbound frames, then republishes
// distinct domain frames on a broadcast stream.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	sender Sender

	// Input from the Connection Manager
	input <-chan connection.InboundFrame

	// Output to subscribers (raw frame text)
	messages *stream.Broadcaster[string]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Single-slot duplicate memo plus counters. OnFrame runs on one
	// goroutine; the mutex covers concurrent Stats readers.
	mu       sync.Mutex
	lastHash uint64
	hasLast  bool
	stats    Stats
}

// New creates a Message Dispatcher consuming frames from input.
func New(cfg Config, input <-chan connection.InboundFrame, sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		cfg:      cfg,
		logger:   logger,
		sender:   sender,
		input:    input,
		messages: stream.NewBroadcaster[string](cfg.StreamBufferSize, logger),
	}
}

// Start begins consuming frames.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.run()

	d.logger.Info("message dispatcher started")
	return nil
}

// Stop gracefully shuts down the dispatcher and closes the message stream.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.logger.Info("stopping message dispatcher")

	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("message dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("message dispatcher stop timed out")
	}

	d.messages.Close()
	return nil
}

// Messages subscribes to the forwarded frame stream.
func (d *Dispatcher) Messages() (<-chan string, func()) {
	return d.messages.Subscribe()
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// run is the main consume loop.
func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case frame, ok := <-d.input:
			if !ok {
				d.logger.Info("input channel closed")
				return
			}
			d.OnFrame(frame.Data)
		}
	}
}

// OnFrame processes a single raw frame.
func (d *Dispatcher) OnFrame(raw []byte) {
	d.mu.Lock()
	d.stats.Received++

	if len(bytes.TrimSpace(raw)) == 0 {
		d.stats.Blanks++
		d.mu.Unlock()
		return
	}

	// Single-slot memo: only the immediately preceding frame is compared.
	hash := xxhash.Sum64(raw)
	if d.hasLast && hash == d.lastHash {
		d.stats.Duplicates++
		d.mu.Unlock()
		d.logger.Debug("dropping duplicate frame")
		return
	}
	d.lastHash = hash
	d.hasLast = true
	d.mu.Unlock()

	switch classify(raw) {
	case KindPing:
		d.handlePing(raw)
		return

	case KindSubscribeAck:
		d.mu.Lock()
		d.stats.SubscribeAcks++
		d.mu.Unlock()
	}

	// Everything that is not a ping is forwarded verbatim, parseable or
	// not. Subscribers own the parsing.
	d.mu.Lock()
	d.stats.Forwarded++
	d.mu.Unlock()
	d.messages.Publish(string(raw))
}

// handlePing answers a ping with a pong carrying back the original
// timestamp and request id. Pings are never forwarded.
func (d *Dispatcher) handlePing(raw []byte) {
	d.mu.Lock()
	d.stats.Pings++
	d.mu.Unlock()

	var ping protocol.PingFrame
	if err := json.Unmarshal(raw, &ping); err != nil {
		d.logger.Warn("malformed ping frame", "error", err)
		return
	}

	data, err := json.Marshal(protocol.Pong(ping))
	if err != nil {
		d.logger.Error("marshal pong frame", "error", err)
		return
	}

	if err := d.sender.SendRaw(data); err != nil {
		d.logger.Warn("send pong frame", "error", err)
	}
}

// classify derives the frame kind from the type discriminator. Parse
// failures classify as unknown; the frame is still forwarded.
func classify(raw []byte) FrameKind {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return KindUnknown
	}

	switch env.Type {
	case protocol.TypePing:
		return KindPing
	case protocol.TypeSubscribeAck:
		return KindSubscribeAck
	case protocol.TypeNotification:
		return KindNotification
	default:
		return KindUnknown
	}
}
