package config

import (
	"fmt"
	"strings"
)

// Validate checks that required fields are set and values are consistent.
// Call after applyDefaults (via LoadAndValidate) so optional fields are
// already populated.
func (c *ClientConfig) Validate() error {
	if c.Instance.ID == "" {
		return fmt.Errorf("instance.id is required")
	}

	if c.Server.WSURL == "" {
		return fmt.Errorf("server.ws_url is required")
	}
	if !strings.HasPrefix(c.Server.WSURL, "ws://") && !strings.HasPrefix(c.Server.WSURL, "wss://") {
		return fmt.Errorf("server.ws_url must start with ws:// or wss://")
	}

	if c.Connection.BackoffFactor < 1.0 {
		return fmt.Errorf("connection.backoff_factor (%g) must be >= 1.0", c.Connection.BackoffFactor)
	}
	if c.Connection.MaxAttempts < 0 {
		return fmt.Errorf("connection.max_attempts (%d) cannot be negative", c.Connection.MaxAttempts)
	}
	if c.Connection.ReconnectMaxDelay < c.Connection.ReconnectDelay {
		return fmt.Errorf("connection.reconnect_max_delay (%v) cannot be less than reconnect_delay (%v)",
			c.Connection.ReconnectMaxDelay, c.Connection.ReconnectDelay)
	}

	if c.Archive.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required when archive is enabled")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required when archive is enabled")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required when archive is enabled")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required when archive is enabled")
		}
		if c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)",
				c.Database.MinConns, c.Database.MaxConns)
		}
	}

	return nil
}
