package archive

import (
	"time"
)

// Config contains configuration for the notification archive writer.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     200,
		FlushInterval: 5 * time.Second,
	}
}

// notificationRow represents a row to be inserted into the notifications table.
type notificationRow struct {
	ID         string
	Kind       string
	Title      string
	Body       string
	VenueID    string
	EventTs    int64 // Milliseconds, as carried on the wire
	ReceivedAt int64 // Milliseconds
}

// Metrics holds counters for the archive writer.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Skipped   int64
	Errors    int64
	Flushes   int64
}
