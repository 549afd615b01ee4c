package session

import (
	"context"
	"log/slog"
	"sync"
)

// Connector is the subset of the connection manager the binder drives.
type Connector interface {
	ConnectWithUser(userID string)
	Disconnect()
}

// Binder watches a session Provider and keeps the connection bound to the
// current identity.
type Binder struct {
	provider Provider
	conn     Connector
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBinder creates a binder between provider and conn.
func NewBinder(provider Provider, conn Connector, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{
		provider: provider,
		conn:     conn,
		logger:   logger,
	}
}

// Start applies the current session and begins watching for changes.
func (b *Binder) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	// Subscribe before applying the current session so an update landing
	// in between is not missed.
	changes, cancel := b.provider.Changes()

	b.apply(b.provider.Current())

	b.wg.Add(1)
	go b.watch(changes, cancel)

	b.logger.Info("session binder started")
	return nil
}

// Stop gracefully shuts the binder down.
func (b *Binder) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("session binder stopped")
	case <-ctx.Done():
		b.logger.Warn("session binder stop timed out")
	}

	return nil
}

// watch consumes session changes until cancelled.
func (b *Binder) watch(changes <-chan Session, cancel func()) {
	defer b.wg.Done()
	defer cancel()

	for {
		select {
		case <-b.ctx.Done():
			return
		case s, ok := <-changes:
			if !ok {
				return
			}
			b.apply(s)
		}
	}
}

// apply connects or disconnects for the given session. The manager's own
// idempotence makes repeated applications of the same session harmless.
func (b *Binder) apply(s Session) {
	if s.Registered() {
		b.logger.Debug("session registered, connecting", "user_id", s.UserID, "role", s.Role)
		b.conn.ConnectWithUser(s.UserID)
		return
	}

	b.logger.Debug("session not registered, disconnecting", "role", s.Role)
	b.conn.Disconnect()
}
