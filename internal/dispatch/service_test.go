package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	kit "ntfyloop/internal/transport"
	logx "ntfyloop/pkg/logx"
)

func intp(n int) *int { return &n }

// recordSink captures every event for assertions. The loop calls
// sinks sequentially, so no locking is needed.
type recordSink struct {
	ok     []Outcome
	failed []Outcome
	sums   []Summary
}

func (s *recordSink) AttemptSucceeded(o Outcome) { s.ok = append(s.ok, o) }
func (s *recordSink) AttemptFailed(o Outcome)    { s.failed = append(s.failed, o) }
func (s *recordSink) RunFinished(sum Summary)    { s.sums = append(s.sums, sum) }

func okSender(calls *atomic.Int64) kit.Sender {
	return kit.SenderFunc(func(ctx context.Context, m kit.Message) (kit.Result, error) {
		calls.Add(1)
		return kit.Result{StatusCode: 200, Body: `{"id":"x"}`}, nil
	})
}

func TestRunCompletesAfterIterations(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	sink := &recordSink{}
	svc := New(okSender(&calls), sink, logx.Nop())

	sum, err := svc.Run(context.Background(), Config{
		Topic:      "alerts",
		Message:    "hello",
		Iterations: intp(3),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("sender calls = %d, want 3", got)
	}
	if sum.Sent != 3 || sum.Failed != 0 || sum.Attempted != 3 {
		t.Fatalf("summary = %+v, want 3/0/3", sum)
	}
	if sum.TerminatedBy != TerminatedCompleted {
		t.Fatalf("terminated by %q, want completed", sum.TerminatedBy)
	}
	if len(sink.sums) != 1 {
		t.Fatalf("RunFinished called %d times, want 1", len(sink.sums))
	}
	if sink.ok[0].Seq != 1 || sink.ok[2].Seq != 3 {
		t.Fatalf("sequence numbers wrong: %+v", sink.ok)
	}
}

func TestRunFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	sender := kit.SenderFunc(func(ctx context.Context, m kit.Message) (kit.Result, error) {
		if calls.Add(1) == 1 {
			return kit.Result{StatusCode: 500, Body: "boom"}, errors.New("server error")
		}
		return kit.Result{StatusCode: 200}, nil
	})
	sink := &recordSink{}
	svc := New(sender, sink, logx.Nop())

	sum, err := svc.Run(context.Background(), Config{
		Topic:      "alerts",
		Message:    "hello",
		Iterations: intp(2),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Sent != 1 || sum.Failed != 1 || sum.Attempted != 2 {
		t.Fatalf("summary = %+v, want 1/1/2", sum)
	}
	if sum.TerminatedBy != TerminatedCompleted {
		t.Fatalf("terminated by %q, want completed", sum.TerminatedBy)
	}
	if len(sink.failed) != 1 || sink.failed[0].Status != 500 {
		t.Fatalf("failed outcomes = %+v, want one with status 500", sink.failed)
	}
}

func TestRunZeroIterationsSendsNothing(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	svc := New(okSender(&calls), nil, logx.Nop())

	sum, err := svc.Run(context.Background(), Config{
		Topic:      "alerts",
		Message:    "hello",
		Iterations: intp(0),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("sender was called for a zero-iteration run")
	}
	if sum.Attempted != 0 || sum.TerminatedBy != TerminatedCompleted {
		t.Fatalf("summary = %+v, want empty completed run", sum)
	}
}

func TestRunRejectsBadConfigBeforeSending(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	svc := New(okSender(&calls), nil, logx.Nop())

	_, err := svc.Run(context.Background(), Config{
		Topic:    "alerts",
		Message:  "hello",
		Priority: 6,
	})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if ce.Field != "priority" {
		t.Fatalf("field = %q, want priority", ce.Field)
	}
	if calls.Load() != 0 {
		t.Fatal("sender was called despite invalid config")
	}
}

func TestRunNilSender(t *testing.T) {
	t.Parallel()

	svc := New(nil, nil, logx.Nop())
	if _, err := svc.Run(context.Background(), Config{Topic: "t", Message: "m"}); err == nil {
		t.Fatal("expected error for nil sender")
	}
}

func TestRunCancelledBeforeFirstSend(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	svc := New(okSender(&calls), nil, logx.Nop())

	sum, err := svc.Run(ctx, Config{Topic: "alerts", Message: "hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls.Load() != 0 || sum.Attempted != 0 {
		t.Fatalf("summary = %+v with %d calls, want nothing attempted", sum, calls.Load())
	}
	if sum.TerminatedBy != TerminatedCancelled {
		t.Fatalf("terminated by %q, want cancelled", sum.TerminatedBy)
	}
}

func TestRunCancelledDuringIntervalWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	sender := kit.SenderFunc(func(context.Context, kit.Message) (kit.Result, error) {
		cancel() // fires before the loop reaches the interval wait
		return kit.Result{StatusCode: 200}, nil
	})
	svc := New(sender, nil, logx.Nop())

	done := make(chan Summary, 1)
	go func() {
		sum, _ := svc.Run(ctx, Config{
			Topic:    "alerts",
			Message:  "hello",
			Interval: time.Hour,
		})
		done <- sum
	}()

	select {
	case sum := <-done:
		if sum.Sent != 1 || sum.Attempted != 1 {
			t.Fatalf("summary = %+v, want the in-flight send counted", sum)
		}
		if sum.TerminatedBy != TerminatedCancelled {
			t.Fatalf("terminated by %q, want cancelled", sum.TerminatedBy)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not observe cancellation during the interval wait")
	}
}

func TestRunSendErrorAfterCancelNotCounted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	sender := kit.SenderFunc(func(context.Context, kit.Message) (kit.Result, error) {
		cancel()
		return kit.Result{}, errors.New("connection reset")
	})
	svc := New(sender, nil, logx.Nop())

	sum, err := svc.Run(ctx, Config{Topic: "alerts", Message: "hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Attempted != 0 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want the aborted attempt uncounted", sum)
	}
	if sum.TerminatedBy != TerminatedCancelled {
		t.Fatalf("terminated by %q, want cancelled", sum.TerminatedBy)
	}
}

func TestRunRetryRecoversTransientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	sender := kit.SenderFunc(func(context.Context, kit.Message) (kit.Result, error) {
		if calls.Add(1) == 1 {
			return kit.Result{}, errors.New("timeout")
		}
		return kit.Result{StatusCode: 200}, nil
	})
	svc := New(sender, nil, logx.Nop())

	sum, err := svc.Run(context.Background(), Config{
		Topic:      "alerts",
		Message:    "hello",
		Iterations: intp(1),
		RetryMax:   1,
		RetryBase:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("sender calls = %d, want 2", calls.Load())
	}
	if sum.Sent != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want the retry to succeed", sum)
	}
}

func TestRunVerboseControlsBody(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		verbose bool
		want    string
	}{
		{"verbose keeps body", true, `{"id":"x"}`},
		{"quiet strips body", false, ""},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int64
			sink := &recordSink{}
			svc := New(okSender(&calls), sink, logx.Nop())

			_, err := svc.Run(context.Background(), Config{
				Topic:      "alerts",
				Message:    "hello",
				Iterations: intp(1),
				Verbose:    tc.verbose,
			})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(sink.ok) != 1 {
				t.Fatalf("got %d outcomes, want 1", len(sink.ok))
			}
			if sink.ok[0].Body != tc.want {
				t.Fatalf("body = %q, want %q", sink.ok[0].Body, tc.want)
			}
		})
	}
}

func TestRunRateLimiterPacesSends(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	svc := New(okSender(&calls), nil, logx.Nop())

	// Burst equals the rate, so the first send is free and the second
	// has to wait roughly a full second for the next token.
	start := time.Now()
	sum, err := svc.Run(context.Background(), Config{
		Topic:      "alerts",
		Message:    "hello",
		Iterations: intp(2),
		RatePerSec: 1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Sent != 2 {
		t.Fatalf("sent = %d, want 2", sum.Sent)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("run took %v, want the limiter to pace the second send", elapsed)
	}
}

func TestRunCancelledDuringRateWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)

	var calls atomic.Int64
	svc := New(okSender(&calls), nil, logx.Nop())

	done := make(chan Summary, 1)
	go func() {
		// Unbounded run: after the burst token is spent the limiter
		// blocks, and only the cancel can end the run.
		sum, _ := svc.Run(ctx, Config{
			Topic:      "alerts",
			Message:    "hello",
			RatePerSec: 1,
		})
		done <- sum
	}()

	select {
	case sum := <-done:
		if sum.Sent != 1 || sum.Attempted != 1 {
			t.Fatalf("summary = %+v, want exactly the pre-wait send counted", sum)
		}
		if sum.TerminatedBy != TerminatedCancelled {
			t.Fatalf("terminated by %q, want cancelled", sum.TerminatedBy)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not observe cancellation during the limiter wait")
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		base time.Duration
		try  int
		want time.Duration
	}{
		{0, 0, 500 * time.Millisecond},
		{time.Second, 0, time.Second},
		{time.Second, 1, 2 * time.Second},
		{time.Second, 2, 4 * time.Second},
		{time.Second, 10, retryMaxDelay},
	} {
		if got := retryDelay(tc.base, tc.try); got != tc.want {
			t.Errorf("retryDelay(%v, %d) = %v, want %v", tc.base, tc.try, got, tc.want)
		}
	}
}
