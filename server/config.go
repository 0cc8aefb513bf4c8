// Package server is a development inference server speaking the same wire
// protocol as the production one. It exists so the client can be exercised
// end to end without a model.
package server

import "time"

// Config is the server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// TokenDelay is the pause between streamed tokens.
	TokenDelay time.Duration
}
