package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent inference configuration stored as
// config.toml in the .inference/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Client  ClientConfig  `toml:"client"`
	Stream  StreamConfig  `toml:"stream"`
	Similar SimilarConfig `toml:"similar"`
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	History HistoryConfig `toml:"history"`
}

// ClientConfig holds settings for commands that talk to an inference server.
type ClientConfig struct {
	// Target is the base URL of the server (scheme + host + port).
	Target string `toml:"target,omitempty"`

	// Timeout bounds a whole request, e.g. "30s". Empty or "0" means none.
	Timeout string `toml:"timeout,omitempty"`
}

// StreamConfig holds settings for streamed generation.
type StreamConfig struct {
	MaxLength         uint   `toml:"max_length,omitempty"`
	ChunkSize         uint   `toml:"chunk_size,omitempty"`
	AllowUnterminated bool   `toml:"allow_unterminated,omitempty"`
	EndMarker         string `toml:"end_marker,omitempty"`
}

// SimilarConfig holds settings for similarity search.
type SimilarConfig struct {
	NumResults uint `toml:"num_results,omitempty"`
}

// ServerConfig holds settings for the local development server.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig selects the history backend. SQLite wins when both are set.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// HistoryConfig controls recording of finished generations.
type HistoryConfig struct {
	Enabled bool `toml:"enabled,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
	"client.timeout": {
		get: func(c *Config) string { return c.Client.Timeout },
		set: func(c *Config, v string) error {
			if _, err := ParseTimeout(v); err != nil {
				return fmt.Errorf("invalid value for client.timeout: %w", err)
			}
			c.Client.Timeout = v
			return nil
		},
	},
	"stream.max_length": uintKey("stream.max_length",
		func(c *Config) *uint { return &c.Stream.MaxLength }),
	"stream.chunk_size": uintKey("stream.chunk_size",
		func(c *Config) *uint { return &c.Stream.ChunkSize }),
	"stream.allow_unterminated": boolKey("stream.allow_unterminated",
		func(c *Config) *bool { return &c.Stream.AllowUnterminated }),
	"stream.end_marker": {
		get: func(c *Config) string { return strconv.Quote(c.Stream.EndMarker) },
		set: func(c *Config, v string) error {
			// Go-quoted values are unquoted so \n can be passed from a shell.
			if unq, err := strconv.Unquote(v); err == nil {
				v = unq
			}
			c.Stream.EndMarker = v
			return nil
		},
	},
	"similar.num_results": uintKey("similar.num_results",
		func(c *Config) *uint { return &c.Similar.NumResults }),
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"history.enabled": boolKey("history.enabled",
		func(c *Config) *bool { return &c.History.Enabled }),
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// ParseTimeout parses a client.timeout value. Empty and "0" mean no timeout
// and return zero.
func ParseTimeout(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", v)
	}
	return d, nil
}
