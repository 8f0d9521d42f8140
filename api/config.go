// Package api provides an HTTP API for driving the bot without a chat
// platform: registering users, switching personas and exchanging messages.
package api

import "net/http"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}
