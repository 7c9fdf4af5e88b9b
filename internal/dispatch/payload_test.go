package dispatch

import (
	"reflect"
	"testing"
)

func TestBuildMessageIdempotent(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Topic:    "alerts",
		Message:  "disk almost full",
		Title:    "ops",
		Tags:     []string{"warning", "floppy_disk"},
		Priority: 4,
		Delay:    "10m",
	}
	a := BuildMessage(cfg)
	b := BuildMessage(cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("messages differ: %+v vs %+v", a, b)
	}
}

func TestBuildMessageOmitsUnsetFields(t *testing.T) {
	t.Parallel()

	m := BuildMessage(Config{Topic: "alerts", Message: "hi"})
	if m.Title != "" || m.Tags != nil || m.Priority != 0 || m.Delay != "" {
		t.Fatalf("unset fields leaked into message: %+v", m)
	}
}

func TestBuildMessageCopiesTags(t *testing.T) {
	t.Parallel()

	cfg := Config{Topic: "alerts", Message: "hi", Tags: []string{"a", "b"}}
	m := BuildMessage(cfg)
	cfg.Tags[0] = "mutated"
	if m.Tags[0] != "a" {
		t.Fatal("message tags alias the config slice")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{Topic: "alerts", Message: "hi"}
	}
	tests := []struct {
		name      string
		mod       func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty topic", func(c *Config) { c.Topic = "" }, "topic"},
		{"empty message", func(c *Config) { c.Message = "" }, "message"},
		{"priority too high", func(c *Config) { c.Priority = 6 }, "priority"},
		{"priority too low", func(c *Config) { c.Priority = -1 }, "priority"},
		{"priority in range", func(c *Config) { c.Priority = 5 }, ""},
		{"negative interval", func(c *Config) { c.Interval = -1 }, "interval"},
		{"zero iterations", func(c *Config) { c.Iterations = intp(0) }, "iterations"},
		{"one iteration", func(c *Config) { c.Iterations = intp(1) }, ""},
		{"negative retry max", func(c *Config) { c.RetryMax = -1 }, "retry_max"},
		{"negative rate", func(c *Config) { c.RatePerSec = -1 }, "rate_per_sec"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := base()
			tc.mod(&cfg)
			err := cfg.Validate()
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			ce, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if ce.Field != tc.wantField {
				t.Fatalf("field = %q, want %q", ce.Field, tc.wantField)
			}
		})
	}
}

func TestSummarySuccessRate(t *testing.T) {
	t.Parallel()

	if got := (Summary{}).SuccessRate(); got != 0 {
		t.Fatalf("empty run rate = %v, want 0", got)
	}
	if got := (Summary{Sent: 3, Attempted: 4}).SuccessRate(); got != 75 {
		t.Fatalf("rate = %v, want 75", got)
	}
}
