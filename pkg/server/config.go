package server

import (
	"net/http"
	"time"
)

// Config holds configuration for the collaboration gateway.
type Config struct {
	// Address is the address to listen on (e.g., ":8433" or "localhost:8433").
	// Default: ":8433".
	Address string

	// AuthToken is the bearer token required on every API request.
	// Empty disables authentication.
	AuthToken string

	// CleanupDelay is the grace period a document room stays alive after
	// its last client disconnects. Negative disables cleanup entirely.
	// Default: 60 seconds.
	CleanupDelay time.Duration

	// SaveDelay is the debounce window for document saves.
	// Default: 1 second.
	SaveDelay time.Duration

	// PollInterval is how often loaders poll storage for out-of-band
	// changes. Zero disables polling.
	// Default: 1 second.
	PollInterval time.Duration

	// LogRoot is the directory update logs are written under, with
	// resource paths resolved relative to it.
	// Default: ".".
	LogRoot string

	// FileIDPath is where the path-to-file-id index is persisted.
	// Empty keeps the index in memory only.
	FileIDPath string

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: allows all origins (not recommended for production).
	CheckOrigin func(r *http.Request) bool

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout is the HTTP server read header timeout.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8433",
		CleanupDelay:      60 * time.Second,
		SaveDelay:         1 * time.Second,
		PollInterval:      1 * time.Second,
		LogRoot:           ".",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       func(*http.Request) bool { return true },
		WriteTimeout:      10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// withDefaults fills in defaults for unset fields. A negative
// CleanupDelay is preserved; it means cleanup is disabled.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	defaults := DefaultConfig()
	out := *c
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.CleanupDelay == 0 {
		out.CleanupDelay = defaults.CleanupDelay
	}
	if out.SaveDelay == 0 {
		out.SaveDelay = defaults.SaveDelay
	}
	if out.LogRoot == "" {
		out.LogRoot = defaults.LogRoot
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = defaults.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaults.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	return &out
}
