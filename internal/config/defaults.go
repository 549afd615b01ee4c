package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultUserAgent         = "venuepulse-notify"
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultConnectThrottle   = 2 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
	DefaultBackoffFactor     = 1.0
	DefaultReconnectMaxDelay = 60 * time.Second
	DefaultSocketBufferSize  = 1000
	DefaultStreamBufferSize  = 256
	DefaultBatchSize         = 100
	DefaultFlushInterval     = 1 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultHealthPort        = 8080
)

func (c *ClientConfig) applyDefaults() {
	// Server defaults
	if c.Server.UserAgent == "" {
		c.Server.UserAgent = DefaultUserAgent
	}
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PingTimeout == 0 {
		c.Server.PingTimeout = DefaultPingTimeout
	}

	// Connection defaults
	if c.Connection.ConnectThrottle == 0 {
		c.Connection.ConnectThrottle = DefaultConnectThrottle
	}
	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.BackoffFactor == 0 {
		c.Connection.BackoffFactor = DefaultBackoffFactor
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.SocketBufferSize == 0 {
		c.Connection.SocketBufferSize = DefaultSocketBufferSize
	}
	if c.Connection.StreamBufferSize == 0 {
		c.Connection.StreamBufferSize = DefaultStreamBufferSize
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}
