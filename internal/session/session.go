package session

import (
	"log/slog"
	"sync"

	"github.com/venuepulse/notify/internal/stream"
)

// Role is the access level of the current user.
type Role int

const (
	RoleGuest Role = iota
	RoleRegistered
	RoleAdmin
)

// String returns the lowercase name of the role.
func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleRegistered:
		return "registered"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Session is the current-user identity. The zero value is an anonymous
// guest session.
type Session struct {
	UserID string
	Role   Role
}

// Registered reports whether this session should hold a live connection.
func (s Session) Registered() bool {
	if s.UserID == "" {
		return false
	}
	return s.Role == RoleRegistered || s.Role == RoleAdmin
}

// Provider exposes the current session as an observable value.
type Provider interface {
	// Current returns the session as of now.
	Current() Session

	// Changes subscribes to session updates.
	Changes() (<-chan Session, func())
}

// MemoryProvider is an in-process Provider fed by the application (login,
// logout, role change).
type MemoryProvider struct {
	mu      sync.Mutex
	current Session
	changes *stream.Broadcaster[Session]
}

// NewMemoryProvider creates a provider holding the zero (guest) session.
func NewMemoryProvider(logger *slog.Logger) *MemoryProvider {
	return &MemoryProvider{
		changes: stream.NewBroadcaster[Session](16, logger),
	}
}

// Set replaces the current session and notifies subscribers.
func (p *MemoryProvider) Set(s Session) {
	p.mu.Lock()
	p.current = s
	p.mu.Unlock()

	p.changes.Publish(s)
}

// Current returns the session as of now.
func (p *MemoryProvider) Current() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Changes subscribes to session updates.
func (p *MemoryProvider) Changes() (<-chan Session, func()) {
	return p.changes.Subscribe()
}

// Close shuts the change stream down.
func (p *MemoryProvider) Close() {
	p.changes.Close()
}
