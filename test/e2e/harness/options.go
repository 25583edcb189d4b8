package harness

import (
	"path/filepath"
	"time"
)

// Option configures the test harness.
type Option func(*Harness) error

// WithAPIKey requires the given API key on every request. Harness
// helpers attach it automatically; raw requests built by tests do not.
//
// Example:
//
//	h := harness.New(t, harness.WithAPIKey("secret"))
func WithAPIKey(key string) Option {
	return func(h *Harness) error {
		h.cfg.Security.APIKey = key
		h.apiKey = key
		return nil
	}
}

// WithPersistence backs the daemon with a SQLite store in a per-test
// temp directory. The file path is available via DBPath.
func WithPersistence() Option {
	return func(h *Harness) error {
		h.dbPath = filepath.Join(h.t.TempDir(), "studio.db")
		h.cfg.Persistence.Path = h.dbPath
		return nil
	}
}

// WithRateLimit caps requests per window. The window is in milliseconds,
// matching the daemon configuration.
func WithRateLimit(requests int, windowMS int64) Option {
	return func(h *Harness) error {
		h.cfg.Security.RateLimitRequests = requests
		h.cfg.Security.RateLimitWindowMS = windowMS
		return nil
	}
}

// WithTimeout sets the HTTP client timeout. Default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) error {
		h.timeout = d
		return nil
	}
}
