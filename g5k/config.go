package g5k

import (
	"log/slog"
	"time"
)

type Config struct {
	// Endpoint is the API root, e.g. "https://api.grid5000.fr/stable".
	Endpoint string
	Username string
	Password string

	// Timeout applies to each individual HTTP exchange, not to a whole
	// polling loop.
	Timeout time.Duration
	// RetryAttempts bounds how many times a timed-out request is retried.
	RetryAttempts int
	// RetryDelay is the fixed pause between retry attempts.
	RetryDelay time.Duration

	Logger *slog.Logger
}

const (
	defaultTimeout       = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)
