package dispatch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	logx "ntfyloop/pkg/logx"

	kit "ntfyloop/internal/transport"
)

const retryMaxDelay = 10 * time.Second

// Service runs dispatch loops. One Service may be reused across runs;
// each Run owns its counters exclusively for the duration of the call,
// so no locking is involved.
type Service struct {
	sender kit.Sender
	sink   Sink
	log    logx.Logger
}

func New(sender kit.Sender, sink Sink, log logx.Logger) *Service {
	if sink == nil {
		sink = NopSink{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{sender: sender, sink: sink, log: log}
}

// Run executes one dispatch run to completion or cancellation.
//
// The loop is sequential: the network call and the inter-message wait
// are the only suspension points, and both observe ctx. A single
// failed send never aborts the run. The returned error is non-nil only
// for configuration problems detected before any network activity.
func (s *Service) Run(ctx context.Context, cfg Config) (Summary, error) {
	if s.sender == nil {
		return Summary{}, errors.New("dispatch: no sender configured")
	}
	if err := cfg.check(true); err != nil {
		return Summary{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}

	s.logRunStart(cfg)

	sum := Summary{StartedAt: time.Now(), TerminatedBy: TerminatedCompleted}

loop:
	for seq := 1; cfg.Iterations == nil || seq <= *cfg.Iterations; seq++ {
		// Cancellation wins over starting another send.
		if ctx.Err() != nil {
			sum.TerminatedBy = TerminatedCancelled
			break
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				sum.TerminatedBy = TerminatedCancelled
				break
			}
		}

		out, aborted := s.sendOnce(ctx, cfg, seq)
		if aborted {
			sum.TerminatedBy = TerminatedCancelled
			break
		}
		if !cfg.Verbose {
			out.Body = ""
		}

		sum.Attempted++
		if out.OK {
			sum.Sent++
			s.sink.AttemptSucceeded(out)
			s.log.Info("message sent",
				logx.Int("seq", seq),
				logx.String("topic", cfg.Topic),
				logx.Int("status", out.Status))
		} else {
			sum.Failed++
			s.sink.AttemptFailed(out)
			s.log.Warn("message send failed",
				logx.Int("seq", seq),
				logx.String("topic", cfg.Topic),
				logx.Int("status", out.Status),
				logx.Err(out.Err))
		}

		if cfg.Iterations != nil && seq >= *cfg.Iterations {
			break
		}
		if cfg.Interval > 0 {
			t := time.NewTimer(cfg.Interval)
			select {
			case <-ctx.Done():
				if !t.Stop() {
					<-t.C
				}
				sum.TerminatedBy = TerminatedCancelled
				break loop
			case <-t.C:
			}
		}
	}

	sum.FinishedAt = time.Now()
	s.sink.RunFinished(sum)
	return sum, nil
}

// sendOnce performs one attempt, including optional retries. It
// reports aborted=true when the run context was cancelled while the
// send was still unresolved; such attempts count as neither sent nor
// failed (see package doc).
func (s *Service) sendOnce(ctx context.Context, cfg Config, seq int) (Outcome, bool) {
	msg := BuildMessage(cfg)

	var (
		res     kit.Result
		lastErr error
	)
	for try := 0; ; try++ {
		res, lastErr = s.sender.Send(ctx, msg)
		if lastErr == nil {
			return Outcome{Seq: seq, OK: true, Status: res.StatusCode, Body: res.Body, At: time.Now()}, false
		}
		if ctx.Err() != nil {
			return Outcome{}, true
		}
		if try >= cfg.RetryMax {
			break
		}

		delay := retryDelay(cfg.RetryBase, try)
		s.log.Debug("send retry scheduled",
			logx.Int("seq", seq),
			logx.Int("attempt", try+2),
			logx.Duration("delay", delay),
			logx.Err(lastErr))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return Outcome{}, true
		case <-t.C:
		}
	}

	// Senders return response metadata alongside status errors, so a
	// rejected request still reports its status code.
	return Outcome{Seq: seq, Err: lastErr, Status: res.StatusCode, Body: res.Body, At: time.Now()}, false
}

func retryDelay(base time.Duration, try int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base
	for i := 0; i < try; i++ {
		d *= 2
		if d >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return d
}

func (s *Service) logRunStart(cfg Config) {
	fields := []logx.Field{
		logx.String("topic", cfg.Topic),
		logx.Duration("interval", cfg.Interval),
	}
	if cfg.Iterations != nil {
		fields = append(fields, logx.Int("iterations", *cfg.Iterations))
	} else {
		fields = append(fields, logx.String("iterations", "unbounded"))
	}
	if cfg.Priority != 0 {
		fields = append(fields, logx.Int("priority", cfg.Priority))
	}
	if cfg.Delay != "" {
		fields = append(fields, logx.String("delay", cfg.Delay))
	}
	s.log.Info("dispatch run starting", fields...)
}
