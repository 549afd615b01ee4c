package config

import "time"

// ClientConfig is the root configuration for a notifier instance.
type ClientConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Database   DBConfig         `yaml:"database"`
	Health     HealthConfig     `yaml:"health"`
}

// InstanceConfig identifies this notifier.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds notification server settings.
type ServerConfig struct {
	WSURL            string        `yaml:"ws_url"`
	Token            string        `yaml:"token"` // Opaque token appended to the connect URL
	UserAgent        string        `yaml:"user_agent"`
	Subprotocols     []string      `yaml:"subprotocols"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
}

// ConnectionConfig holds connection manager settings.
type ConnectionConfig struct {
	ConnectThrottle   time.Duration `yaml:"connect_throttle"`    // Min interval between connect attempts
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`     // Base wait before retrying after a failure
	BackoffFactor     float64       `yaml:"backoff_factor"`      // 1.0 = fixed interval
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"` // Cap when backoff_factor > 1
	MaxAttempts       int           `yaml:"max_attempts"`        // 0 = retry forever
	SocketBufferSize  int           `yaml:"socket_buffer_size"`
	StreamBufferSize  int           `yaml:"stream_buffer_size"`
}

// ArchiveConfig holds notification archive settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds the PostgreSQL connection for the notification archive.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HealthConfig holds the HTTP health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
