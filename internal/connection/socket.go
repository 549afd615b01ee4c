package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Socket represents a single WebSocket connection to the notification server.
type Socket interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection with a normal-closure frame.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Frames returns a channel of inbound frames. The channel is closed
	// when the read loop exits.
	Frames() <-chan InboundFrame

	// Errors returns a channel of transport errors.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// socket implements the Socket interface.
type socket struct {
	cfg    SocketConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	frames chan InboundFrame
	errors chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	connected  bool
	lastPingAt time.Time
	closed     bool
}

// NewSocket creates a new WebSocket socket.
func NewSocket(cfg SocketConfig, logger *slog.Logger) Socket {
	if logger == nil {
		logger = slog.Default()
	}

	return &socket{
		cfg:    cfg,
		logger: logger,
		frames: make(chan InboundFrame, cfg.BufferSize),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (s *socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrAlreadyClosed
	}
	s.mu.Unlock()

	// Build handshake headers
	header := http.Header{}
	header.Set("Accept", "application/json")
	if s.cfg.UserAgent != "" {
		header.Set("User-Agent", s.cfg.UserAgent)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		Subprotocols:     s.cfg.Subprotocols,
	}

	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.lastPingAt = time.Now()
	s.mu.Unlock()

	// Transport-level ping from the server: answer with a pong
	conn.SetPingHandler(func(data string) error {
		s.mu.Lock()
		s.lastPingAt = time.Now()
		s.mu.Unlock()

		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server answered our keepalive ping
	conn.SetPongHandler(func(data string) error {
		s.mu.Lock()
		s.lastPingAt = time.Now()
		s.mu.Unlock()
		return nil
	})

	go s.readLoop()
	go s.heartbeatLoop()

	s.logger.Debug("websocket connected", "url", s.cfg.URL)

	return nil
}

// Close gracefully closes the connection.
func (s *socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	s.mu.Unlock()

	// Signal goroutines to stop
	close(s.done)

	if s.conn != nil {
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return s.conn.Close()
	}

	return nil
}

// Send writes raw bytes to the connection.
func (s *socket) Send(data []byte) error {
	s.mu.RLock()
	if !s.connected {
		s.mu.RUnlock()
		return ErrNotConnected
	}
	s.mu.RUnlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Frames returns the inbound frame channel.
func (s *socket) Frames() <-chan InboundFrame {
	return s.frames
}

// Errors returns the errors channel.
func (s *socket) Errors() <-chan error {
	return s.errors
}

// IsConnected returns the current connection state.
func (s *socket) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// readLoop reads frames from the WebSocket and sends them to the frames
// channel. The channel is closed on exit so consumers can detect teardown.
func (s *socket) readLoop() {
	defer func() {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		close(s.frames)
	}()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-s.done:
				return
			default:
				select {
				case s.errors <- err:
				default:
				}
				return
			}
		}

		frame := InboundFrame{
			Data:       data,
			ReceivedAt: receivedAt,
		}

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		default:
			s.logger.Warn("frame buffer full, dropping frame")
		}
	}
}

// heartbeatLoop monitors for stale connections.
func (s *socket) heartbeatLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()

			if conn != nil {
				deadline := time.Now().Add(s.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
					s.logger.Debug("failed to send ping", "error", err)
				}
			}

			s.mu.RLock()
			lastPing := s.lastPingAt
			s.mu.RUnlock()

			if time.Since(lastPing) > s.cfg.PingTimeout {
				s.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", s.cfg.PingTimeout,
				)
				select {
				case s.errors <- ErrStaleConnection:
				default:
				}
				return
			}
		}
	}
}
