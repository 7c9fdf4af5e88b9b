package config

import (
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"10s", 10 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"-5s", 0, true},
		{"banana", 0, true},
	} {
		got, err := ParseDurationField("x", tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDurationField(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDurationField(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDurationField(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseInterval(t *testing.T) {
	t.Parallel()

	const def = 300 * time.Second
	for _, tc := range []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", def, false},
		{"300", 300 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"0", 0, false},
		{"5m", 5 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"-1", 0, true},
		{"-5s", 0, true},
		{"soon", 0, true},
	} {
		got, err := ParseInterval("notify.interval", tc.raw, def)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseInterval(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseInterval(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseInterval(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
