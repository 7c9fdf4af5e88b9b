// Package schedule fires dispatch runs from an automation trigger: a
// cron expression or a fixed interval. One trigger starts one run;
// triggers that arrive while a run is still active are skipped.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "ntfyloop/pkg/logx"
)

// RunFunc executes one dispatch run. It must respect ctx.
type RunFunc func(ctx context.Context)

type Service struct {
	spec ParsedSpec
	run  RunFunc
	log  logx.Logger

	mu     sync.Mutex
	active bool
}

func New(spec ParsedSpec, run RunFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{spec: spec, run: run, log: log}
}

// Run blocks until ctx is done, firing the configured trigger. It is
// meant to live under the runtime supervisor.
func (s *Service) Run(ctx context.Context) error {
	switch s.spec.Kind {
	case SpecCron:
		return s.runCron(ctx)
	default:
		return s.runInterval(ctx)
	}
}

func (s *Service) runCron(ctx context.Context) error {
	// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(s.spec.Cron, func() { s.trigger(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.log.Info("schedule started", logx.String("cron", s.spec.Cron))

	<-ctx.Done()
	stopCtx := c.Stop()
	// Let an in-flight trigger callback return; the run itself is
	// already winding down via ctx.
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
	return nil
}

func (s *Service) runInterval(ctx context.Context) error {
	s.log.Info("schedule started", logx.Duration("every", s.spec.Every))
	t := time.NewTicker(s.spec.Every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.trigger(ctx)
		}
	}
}

func (s *Service) trigger(ctx context.Context) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		s.log.Warn("previous run still active; skipping trigger")
		return
	}
	s.active = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()
	s.run(ctx)
}
