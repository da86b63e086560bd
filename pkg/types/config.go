package types

import (
	"fmt"
	"time"
)

// Defaults applied by Config.WithDefaults.
const (
	DefaultMaxConnections = 10
	DefaultBusyTimeout    = 5 * time.Second
)

// Config holds manager-wide settings: where physical stores live, how many
// handles may be open at once, and which driver to prefer.
type Config struct {
	// MaxConnections is the ceiling on simultaneously open handles.
	MaxConnections int `json:"max_connections" yaml:"max_connections"`

	// DataDir is the directory holding one <name>.db file per logical
	// database. Empty means every store is opened in memory.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Driver names the preferred driver. Empty selects the first supported
	// driver in registration order.
	Driver string `json:"driver" yaml:"driver"`

	// BusyTimeout bounds how long the driver waits on a locked store.
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout"`

	// VerifyIntegrity adds PRAGMA quick_check to the post-open probe.
	VerifyIntegrity bool `json:"verify_integrity" yaml:"verify_integrity"`
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = DefaultBusyTimeout
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a configuration
// error wrapping ErrInvalidCapacity when MaxConnections is below one.
func (c Config) Validate() error {
	if c.MaxConnections < 1 {
		return NewConfigurationError("validate_config", "max_connections",
			fmt.Sprintf("must be at least 1, got %d", c.MaxConnections), ErrInvalidCapacity)
	}
	if c.BusyTimeout < 0 {
		return NewConfigurationError("validate_config", "busy_timeout",
			"must not be negative", nil)
	}
	return nil
}
