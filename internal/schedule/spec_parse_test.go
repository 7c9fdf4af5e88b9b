package schedule

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		kind    SpecKind
		cron    string
		every   time.Duration
		source  string
		wantErr bool
	}{
		{in: "*/5 * * * *", kind: SpecCron, cron: "*/5 * * * *", source: "cron"},
		{in: "0 9 * * 1-5", kind: SpecCron, cron: "0 9 * * 1-5", source: "cron"},
		{in: "@hourly", kind: SpecCron, cron: "@hourly", source: "cron"},
		{in: "cron:0 9 * * *", kind: SpecCron, cron: "0 9 * * *", source: "cron"},
		{in: "CRON:@daily", kind: SpecCron, cron: "@daily", source: "cron"},

		{in: "55m", kind: SpecInterval, every: 55 * time.Minute, source: "duration"},
		{in: "2h30m", kind: SpecInterval, every: 150 * time.Minute, source: "duration"},
		{in: "interval:90s", kind: SpecInterval, every: 90 * time.Second, source: "duration"},
		{in: "every:10m", kind: SpecInterval, every: 10 * time.Minute, source: "duration"},

		{in: "00:50", kind: SpecInterval, every: 50 * time.Minute, source: "hhmm"},
		{in: "02:30", kind: SpecInterval, every: 150 * time.Minute, source: "hhmm"},
		{in: "interval:01:15", kind: SpecInterval, every: 75 * time.Minute, source: "hhmm"},

		{in: "", wantErr: true},
		{in: "cron:", wantErr: true},
		{in: "interval:", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "0s", wantErr: true},
		{in: "00:00", wantErr: true},
		{in: "00:75", wantErr: true},
		{in: "soonish", wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseSchedule(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseSchedule(%q): expected error, got %+v", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tc.in, err)
			}
			if got.Kind != tc.kind {
				t.Fatalf("kind = %v, want %v", got.Kind, tc.kind)
			}
			if got.Cron != tc.cron || got.Every != tc.every || got.Source != tc.source {
				t.Fatalf("ParseSchedule(%q) = %+v", tc.in, got)
			}
		})
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()

	hh, mm, err := parseHHMM("128:45")
	if err != nil {
		t.Fatalf("parseHHMM: %v", err)
	}
	if hh != 128 || mm != 45 {
		t.Fatalf("parseHHMM = %d:%d, want 128:45", hh, mm)
	}
	if _, _, err := parseHHMM("10:99"); err == nil {
		t.Fatal("expected error for minutes > 59")
	}
}
