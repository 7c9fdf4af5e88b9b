package config

import (
	"fmt"
	"strings"

	"ntfyloop/internal/dispatch"
)

// Config is the on-disk configuration. Flags take precedence over
// file values; see cmd/ntfyloop.
type Config struct {
	// Notify holds the dispatch parameters for a run.
	Notify NotifyConfig `json:"notify"`

	// Schedule, when set, turns the process into a daemon that fires
	// one dispatch run per trigger. Supported forms: a cron
	// expression ("*/5 * * * *", "@hourly", "cron:0 9 * * *"), a Go
	// duration ("15m"), or HH:MM as an interval ("01:30").
	Schedule string `json:"schedule,omitempty"`

	Server  ServerConfig   `json:"server,omitempty"`
	Logging LoggingConfig  `json:"logging,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`
}

// NotifyConfig mirrors dispatch.Config with wire-friendly field types.
// Durations are either bare seconds ("300", "0.5") or Go duration
// strings ("5m", "1h30m").
type NotifyConfig struct {
	Topic      string   `json:"topic"`
	Message    string   `json:"message"`
	Title      string   `json:"title,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Priority   int      `json:"priority,omitempty"`
	Delay      string   `json:"delay,omitempty"`
	Interval   string   `json:"interval,omitempty"`
	Iterations *int     `json:"iterations,omitempty"`
	Verbose    bool     `json:"verbose,omitempty"`
	RetryMax   int      `json:"retry_max,omitempty"`
	RatePerSec int      `json:"rate_per_sec,omitempty"`
}

// ServerConfig points at the ntfy server.
type ServerConfig struct {
	URL     string `json:"url,omitempty"`
	Token   string `json:"token,omitempty"`
	Timeout string `json:"timeout,omitempty"` // Go duration string
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console *bool      `json:"console,omitempty"` // default true
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the optional run-history store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./ntfyloop_history" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ConsoleEnabled reports whether console logging is on (default true).
func (l LoggingConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

// Dispatch converts the file representation into a validated
// dispatch.Config. The interval defaults to dispatch.DefaultInterval
// when omitted.
func (n NotifyConfig) Dispatch() (dispatch.Config, error) {
	interval, err := ParseInterval("notify.interval", n.Interval, dispatch.DefaultInterval)
	if err != nil {
		return dispatch.Config{}, err
	}

	cfg := dispatch.Config{
		Topic:      strings.TrimSpace(n.Topic),
		Message:    n.Message,
		Title:      n.Title,
		Tags:       n.Tags,
		Priority:   n.Priority,
		Delay:      strings.TrimSpace(n.Delay),
		Interval:   interval,
		Verbose:    n.Verbose,
		RetryMax:   n.RetryMax,
		RatePerSec: n.RatePerSec,
	}
	if n.Iterations != nil {
		it := *n.Iterations
		cfg.Iterations = &it
	}
	if err := cfg.Validate(); err != nil {
		return dispatch.Config{}, err
	}
	return cfg, nil
}

// Validate checks everything the daemon needs before starting.
func (c *Config) Validate() error {
	if _, err := c.Notify.Dispatch(); err != nil {
		return err
	}
	if _, err := ParseDurationField("server.timeout", c.Server.Timeout); err != nil {
		return err
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if lvl := strings.TrimSpace(c.Logging.Level); lvl != "" {
		switch strings.ToUpper(lvl) {
		case "TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
		default:
			return fmt.Errorf("logging.level: unknown level %q", lvl)
		}
	}
	return nil
}
