package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/venuepulse/notify/internal/protocol"
	"github.com/venuepulse/notify/internal/stream"
)

// Manager maintains a single WebSocket connection bound to the current user
// identity. Every operation is non-blocking; outcomes are observed through
// the state stream and the inbound frame channel, never through a return
// value.
type Manager interface {
	// ConnectWithUser binds the connection to userID and dials. A call for
	// an identity that is already connecting or connected is a no-op; a
	// call within the connect throttle of the previous attempt is skipped.
	ConnectWithUser(userID string)

	// Subscribe sends a subscribe frame for channel when connected and
	// remembers the channel for replay after a reconnect. Logged no-op
	// when not connected.
	Subscribe(channel string)

	// Send wraps payload in a message envelope and transmits it. No
	// queueing, no retry; logged no-op when not connected.
	Send(destination string, payload any)

	// SendRaw transmits pre-encoded frame bytes. Used by the dispatcher
	// for pong replies.
	SendRaw(data []byte) error

	// Disconnect closes the socket with a normal-closure code, clears the
	// identity, and emits StatusDisconnected. Cancels any pending
	// reconnect.
	Disconnect()

	// States subscribes to connection state transitions.
	States() (<-chan State, func())

	// CurrentState returns the authoritative state value.
	CurrentState() State

	// Frames returns the inbound frame channel consumed by the dispatcher.
	Frames() <-chan InboundFrame

	// Stats returns a snapshot of internal counters.
	Stats() ManagerStats

	// Close tears the manager down for good.
	Close()
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	states *stream.Broadcaster[State]
	frames chan InboundFrame

	// Socket construction, swappable in tests.
	newSocket func(SocketConfig, *slog.Logger) Socket

	// All mutable session state lives behind mu. The socket handle, the
	// current identity, and the attempt epoch are only ever mutated here.
	mu            sync.Mutex
	sock          Socket
	userID        string
	state         State
	epoch         uint64
	lastAttempt   time.Time
	channels      []string
	attempts      int
	framesDropped int64
	closed        bool
}

// NewManager creates a new Connection Manager. The manager is constructed
// by the composition root and injected; it is not a package-level singleton.
func NewManager(cfg ManagerConfig, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &manager{
		cfg:       cfg,
		logger:    logger,
		states:    stream.NewBroadcaster[State](cfg.StreamBufferSize, logger),
		frames:    make(chan InboundFrame, cfg.FrameBufferSize),
		newSocket: NewSocket,
		state:     State{Status: StatusDisconnected},
	}
}

// ConnectWithUser binds the connection to userID and dials.
func (m *manager) ConnectWithUser(userID string) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return
	}

	// Idempotent connect: a live session (or an in-flight dial) for the
	// same identity is left alone.
	if m.userID == userID &&
		(m.state.Status == StatusConnecting ||
			(m.state.Status == StatusConnected && m.sock != nil)) {
		m.mu.Unlock()
		m.logger.Debug("already connected, ignoring connect", "user_id", userID)
		return
	}

	// A throttled attempt is skipped outright. Nothing is touched: the
	// previous session, identity, and state all stay as they were.
	if since := time.Since(m.lastAttempt); since < m.cfg.ConnectThrottle {
		m.mu.Unlock()
		m.logger.Warn("connect attempt throttled",
			"user_id", userID,
			"since_last_attempt", since,
			"throttle", m.cfg.ConnectThrottle,
		)
		return
	}

	// Supersede any previous session: pending reconnect timers and
	// in-flight dials check the epoch before acting.
	m.epoch++
	epoch := m.epoch
	m.userID = userID
	m.attempts = 0
	m.channels = nil

	sock := m.sock
	m.sock = nil

	m.lastAttempt = time.Now()
	m.state = State{Status: StatusConnecting}
	m.mu.Unlock()

	if sock != nil {
		sock.Close()
	}

	m.states.Publish(State{Status: StatusConnecting})
	go m.dial(userID, epoch)
}

// dial establishes a socket for userID and, on success, starts the frame
// pump. Runs off the caller's goroutine.
func (m *manager) dial(userID string, epoch uint64) {
	sockCfg := SocketConfig{
		URL:              m.connectURL(userID),
		UserAgent:        m.cfg.UserAgent,
		Subprotocols:     m.cfg.Subprotocols,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		WriteTimeout:     m.cfg.WriteTimeout,
		PingTimeout:      m.cfg.PingTimeout,
		BufferSize:       m.cfg.SocketBufferSize,
	}
	sock := m.newSocket(sockCfg, m.logger.With("user_id", userID))

	err := sock.Connect(context.Background())

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		sock.Close()
		m.logger.Debug("dial superseded, discarding socket", "user_id", userID)
		return
	}

	if err != nil {
		m.state = State{Status: StatusFailed, Reason: err.Error()}
		m.mu.Unlock()

		m.logger.Warn("connect failed", "user_id", userID, "error", err)
		m.states.Publish(State{Status: StatusFailed, Reason: err.Error()})
		m.scheduleReconnect(userID, epoch)
		return
	}

	m.sock = sock
	m.state = State{Status: StatusConnected}
	m.attempts = 0
	channels := make([]string, len(m.channels))
	copy(channels, m.channels)
	m.mu.Unlock()

	m.logger.Info("connected", "user_id", userID)
	m.states.Publish(State{Status: StatusConnected})

	// Replay subscriptions from before the reconnect. The server tolerates
	// duplicate subscribes.
	for _, channel := range channels {
		m.sendSubscribe(sock, channel, userID)
	}

	go m.pump(sock, userID, epoch)
}

// pump forwards inbound frames to the dispatcher channel until the socket
// tears down.
func (m *manager) pump(sock Socket, userID string, epoch uint64) {
	for {
		select {
		case frame, ok := <-sock.Frames():
			if !ok {
				// Socket torn down. The read loop may have reported an error
				// right before closing the frame channel; pick it up so the
				// failure is not lost to the select order.
				select {
				case err := <-sock.Errors():
					m.handleFailure(sock, userID, epoch, err)
				default:
				}
				return
			}
			select {
			case m.frames <- frame:
			default:
				m.mu.Lock()
				m.framesDropped++
				m.mu.Unlock()
				m.logger.Warn("dispatcher buffer full, dropping frame")
			}

		case err := <-sock.Errors():
			m.handleFailure(sock, userID, epoch, err)
			return
		}
	}
}

// handleFailure records a transport failure and schedules a reconnect when
// the failed identity is still current. A server-sent normal closure ends
// the session without a retry.
func (m *manager) handleFailure(sock Socket, userID string, epoch uint64, err error) {
	graceful := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		sock.Close()
		return
	}
	m.sock = nil
	if graceful {
		m.state = State{Status: StatusDisconnected}
	} else {
		m.state = State{Status: StatusFailed, Reason: err.Error()}
	}
	m.mu.Unlock()

	sock.Close()

	if graceful {
		m.logger.Info("server closed connection", "user_id", userID)
		m.states.Publish(State{Status: StatusDisconnected})
		return
	}

	m.logger.Warn("connection failed", "user_id", userID, "error", err)
	m.states.Publish(State{Status: StatusFailed, Reason: err.Error()})
	m.scheduleReconnect(userID, epoch)
}

// scheduleReconnect arms a one-shot timer for the next attempt. The timer
// re-checks identity and epoch before dialing, so a logout or a connect for
// a different user during the delay suppresses it.
func (m *manager) scheduleReconnect(userID string, epoch uint64) {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	if m.cfg.MaxAttempts > 0 && attempt > m.cfg.MaxAttempts {
		m.logger.Error("reconnect attempts exhausted, giving up",
			"user_id", userID,
			"attempts", attempt-1,
		)
		return
	}

	delay := m.reconnectDelay(attempt)
	m.logger.Info("scheduling reconnect",
		"user_id", userID,
		"attempt", attempt,
		"delay", delay,
	)

	time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.closed || m.epoch != epoch || m.userID != userID {
			m.mu.Unlock()
			m.logger.Debug("skipping stale reconnect", "user_id", userID)
			return
		}

		if since := time.Since(m.lastAttempt); since < m.cfg.ConnectThrottle {
			m.mu.Unlock()
			m.logger.Warn("reconnect attempt throttled",
				"user_id", userID,
				"since_last_attempt", since,
			)
			return
		}

		m.lastAttempt = time.Now()
		m.state = State{Status: StatusConnecting}
		m.mu.Unlock()

		m.states.Publish(State{Status: StatusConnecting})
		go m.dial(userID, epoch)
	})
}

// reconnectDelay computes the wait before the given attempt number.
func (m *manager) reconnectDelay(attempt int) time.Duration {
	delay := m.cfg.ReconnectDelay
	if m.cfg.BackoffFactor > 1.0 {
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * m.cfg.BackoffFactor)
			if delay >= m.cfg.ReconnectMaxDelay {
				return m.cfg.ReconnectMaxDelay
			}
		}
	}
	return delay
}

// Subscribe sends a subscribe frame for channel.
func (m *manager) Subscribe(channel string) {
	m.mu.Lock()
	sock := m.sock
	userID := m.userID
	connected := m.state.Status == StatusConnected && sock != nil
	if connected {
		// Duplicates are kept on purpose: duplicate Subscribe calls produce
		// duplicate frames, and replay mirrors that.
		m.channels = append(m.channels, channel)
	}
	m.mu.Unlock()

	if !connected {
		m.logger.Warn("subscribe skipped, not connected", "channel", channel)
		return
	}

	m.sendSubscribe(sock, channel, userID)
}

// sendSubscribe marshals and transmits one subscribe frame.
func (m *manager) sendSubscribe(sock Socket, channel, userID string) {
	frame := protocol.NewSubscribeFrame(channel, userID)
	data, err := json.Marshal(frame)
	if err != nil {
		m.logger.Error("marshal subscribe frame", "channel", channel, "error", err)
		return
	}
	if err := sock.Send(data); err != nil {
		m.logger.Warn("send subscribe frame", "channel", channel, "error", err)
		return
	}
	m.logger.Debug("subscribed", "channel", channel, "request_id", frame.RequestID)
}

// Send wraps payload in a message envelope and transmits it.
func (m *manager) Send(destination string, payload any) {
	m.mu.Lock()
	sock := m.sock
	userID := m.userID
	connected := m.state.Status == StatusConnected && sock != nil
	m.mu.Unlock()

	if !connected {
		m.logger.Warn("send skipped, not connected", "destination", destination)
		return
	}

	frame := protocol.MessageFrame{
		Type:        protocol.TypeMessage,
		Destination: destination,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
		UserID:      userID,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		m.logger.Error("marshal message frame", "destination", destination, "error", err)
		return
	}
	if err := sock.Send(data); err != nil {
		m.logger.Warn("send message frame", "destination", destination, "error", err)
	}
}

// SendRaw transmits pre-encoded frame bytes.
func (m *manager) SendRaw(data []byte) error {
	m.mu.Lock()
	sock := m.sock
	connected := m.state.Status == StatusConnected && sock != nil
	m.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	return sock.Send(data)
}

// Disconnect closes the socket and clears the identity.
func (m *manager) Disconnect() {
	m.mu.Lock()
	m.epoch++
	sock := m.sock
	m.sock = nil
	m.userID = ""
	m.channels = nil
	m.attempts = 0
	already := m.state.Status == StatusDisconnected
	m.state = State{Status: StatusDisconnected}
	m.mu.Unlock()

	if sock != nil {
		sock.Close()
	}

	if !already {
		m.logger.Info("disconnected")
		m.states.Publish(State{Status: StatusDisconnected})
	}
}

// States subscribes to connection state transitions.
func (m *manager) States() (<-chan State, func()) {
	return m.states.Subscribe()
}

// CurrentState returns the authoritative state value.
func (m *manager) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Frames returns the inbound frame channel.
func (m *manager) Frames() <-chan InboundFrame {
	return m.frames
}

// Stats returns a snapshot of internal counters.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		State:             m.state,
		UserID:            m.userID,
		Subscriptions:     len(m.channels),
		ReconnectAttempts: m.attempts,
		FramesDropped:     m.framesDropped,
	}
}

// Close tears the manager down for good.
func (m *manager) Close() {
	m.Disconnect()

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.states.Close()
}

// connectURL builds the endpoint URL with identity query parameters.
func (m *manager) connectURL(userID string) string {
	u, err := url.Parse(m.cfg.WSURL)
	if err != nil {
		// Let the dialer surface the bad URL as a connect failure.
		return m.cfg.WSURL
	}

	q := u.Query()
	q.Set("userId", userID)
	if m.cfg.Token != "" {
		q.Set("token", m.cfg.Token)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
