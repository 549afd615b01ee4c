package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Status is the connection lifecycle phase.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is one authoritative connection state value. Reason is set only
// when Status is StatusFailed.
type State struct {
	Status Status
	Reason string
}

// InboundFrame wraps raw frame bytes with a receive timestamp.
type InboundFrame struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when the read returned
}

// SocketConfig configures a single WebSocket socket.
type SocketConfig struct {
	URL              string        // Fully built connect URL, query params included
	UserAgent        string        // User-Agent handshake header
	Subprotocols     []string      // Sec-WebSocket-Protocol offers, optional
	HandshakeTimeout time.Duration // Dial timeout
	WriteTimeout     time.Duration // Write deadline for sends
	PingTimeout      time.Duration // Max time without ping before considering connection stale
	BufferSize       int           // Frame channel buffer size
}

// DefaultSocketConfig returns sensible defaults.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		UserAgent:        "venuepulse-notify",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingTimeout:      60 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	WSURL        string   // Base WebSocket URL (e.g., wss://push.venuepulse.dev/realtime)
	Token        string   // Opaque token appended to the connect URL
	UserAgent    string   // User-Agent handshake header
	Subprotocols []string // Sec-WebSocket-Protocol offers, optional

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingTimeout      time.Duration

	ConnectThrottle   time.Duration // Min interval between connect attempts, any trigger
	ReconnectDelay    time.Duration // Base wait before retrying after a failure
	BackoffFactor     float64       // 1.0 = fixed interval
	ReconnectMaxDelay time.Duration // Delay cap when BackoffFactor > 1
	MaxAttempts       int           // Consecutive failures before giving up; 0 = retry forever

	SocketBufferSize int // Socket frame channel buffer
	StreamBufferSize int // Per-subscriber state stream buffer
	FrameBufferSize  int // Dispatcher input channel buffer
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		UserAgent:         "venuepulse-notify",
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		PingTimeout:       60 * time.Second,
		ConnectThrottle:   2 * time.Second,
		ReconnectDelay:    3 * time.Second,
		BackoffFactor:     1.0,
		ReconnectMaxDelay: 60 * time.Second,
		SocketBufferSize:  1000,
		StreamBufferSize:  256,
		FrameBufferSize:   1000,
	}
}

// ManagerStats provides a snapshot of the manager's internal counters.
type ManagerStats struct {
	State             State
	UserID            string
	Subscriptions     int
	ReconnectAttempts int
	FramesDropped     int64
}
