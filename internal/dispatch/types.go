package dispatch

import (
	"fmt"
	"time"
)

// DefaultInterval matches the historical default cadence of the tool.
const DefaultInterval = 300 * time.Second

// Config describes one dispatch run. It is constructed once by the
// entry point and never mutated by the loop.
type Config struct {
	// Topic names the destination channel. Required.
	Topic string
	// Message is the notification body. Required.
	Message string

	// Optional notification attributes. Zero values mean "omit from
	// the outgoing request" (never sent as empty placeholders).
	Title    string
	Tags     []string
	Priority int    // 1..5 when set, 0 = unset
	Delay    string // server-side delivery delay, e.g. "30m"

	// Interval between successive sends. 0 means back-to-back.
	Interval time.Duration
	// Iterations caps the number of sends; nil means unbounded
	// (the run then ends only on cancellation).
	Iterations *int
	// Verbose includes response bodies in attempt outcomes.
	Verbose bool

	// RetryMax retries a single attempt this many extra times before
	// it counts as failed. 0 disables retries.
	RetryMax int
	// RetryBase is the initial retry backoff (doubles per retry,
	// capped at 10s). Defaults to 500ms when zero.
	RetryBase time.Duration
	// RatePerSec, when > 0, additionally rate-limits sends. Useful
	// as a guard when Interval is 0.
	RatePerSec int
}

// ConfigError reports an invalid or missing configuration field. It is
// surfaced before the loop performs any network activity.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Validate checks the full entry-point invariants, including the
// iterations >= 1 rule.
func (c Config) Validate() error {
	return c.check(false)
}

// check verifies loop invariants. The loop itself tolerates an
// explicit zero iteration count (it completes without sending), so it
// validates with allowZeroIterations set.
func (c Config) check(allowZeroIterations bool) error {
	if c.Topic == "" {
		return &ConfigError{Field: "topic", Reason: "must not be empty"}
	}
	if c.Message == "" {
		return &ConfigError{Field: "message", Reason: "must not be empty"}
	}
	if c.Priority != 0 && (c.Priority < 1 || c.Priority > 5) {
		return &ConfigError{Field: "priority", Reason: fmt.Sprintf("must be 1..5, got %d", c.Priority)}
	}
	if c.Interval < 0 {
		return &ConfigError{Field: "interval", Reason: "must be >= 0"}
	}
	if c.Iterations != nil {
		min := 1
		if allowZeroIterations {
			min = 0
		}
		if *c.Iterations < min {
			return &ConfigError{Field: "iterations", Reason: fmt.Sprintf("must be >= %d, got %d", min, *c.Iterations)}
		}
	}
	if c.RetryMax < 0 {
		return &ConfigError{Field: "retry_max", Reason: "must be >= 0"}
	}
	if c.RatePerSec < 0 {
		return &ConfigError{Field: "rate_per_sec", Reason: "must be >= 0"}
	}
	return nil
}

// Outcome records one completed send attempt.
type Outcome struct {
	Seq    int // 1-based sequence number
	OK     bool
	Status int    // HTTP status when known, 0 otherwise
	Body   string // response body; populated only for verbose runs
	Err    error  // nil on success
	At     time.Time
}

// Termination says how a run ended.
type Termination string

const (
	TerminatedCompleted Termination = "completed"
	TerminatedCancelled Termination = "cancelled"
)

// Summary is the run-level result. A cancelled run yields the same
// shape as a completed one, reflecting partial progress.
type Summary struct {
	Sent         int
	Failed       int
	Attempted    int
	TerminatedBy Termination
	StartedAt    time.Time
	FinishedAt   time.Time
}

func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// SuccessRate returns sent/attempted in percent, 0 for empty runs.
func (s Summary) SuccessRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Sent) / float64(s.Attempted) * 100
}

// Sink receives structured progress events from the loop. Calls are
// synchronous and sequential; implementations must not retain the
// outcome values past the call.
type Sink interface {
	AttemptSucceeded(o Outcome)
	AttemptFailed(o Outcome)
	RunFinished(s Summary)
}
