package dispatch

import (
	"ntfyloop/internal/eventbus"
	logx "ntfyloop/pkg/logx"
)

// NopSink discards all events.
type NopSink struct{}

func (NopSink) AttemptSucceeded(Outcome) {}
func (NopSink) AttemptFailed(Outcome)    {}
func (NopSink) RunFinished(Summary)      {}

// LogSink reports outcomes through the structured logger. This is the
// default reporting surface for CLI runs.
type LogSink struct {
	Log logx.Logger
}

func (s LogSink) AttemptSucceeded(o Outcome) {
	if o.Body != "" {
		s.Log.Info("response received", logx.Int("seq", o.Seq), logx.String("body", o.Body))
	}
}

func (s LogSink) AttemptFailed(o Outcome) {
	fields := []logx.Field{
		logx.Int("seq", o.Seq),
		logx.Int("status", o.Status),
		logx.Err(o.Err),
	}
	if o.Body != "" {
		fields = append(fields, logx.String("body", o.Body))
	}
	s.Log.Warn("send rejected", fields...)
}

func (s LogSink) RunFinished(sum Summary) {
	s.Log.Info("run finished",
		logx.String("terminated_by", string(sum.TerminatedBy)),
		logx.Int("sent", sum.Sent),
		logx.Int("failed", sum.Failed),
		logx.Int("attempted", sum.Attempted),
		logx.Duration("took", sum.Duration()),
		logx.Float64("success_rate", sum.SuccessRate()))
}

// BusSink publishes dispatch events on the event bus so observers
// (e.g. the run-history recorder) stay decoupled from the loop.
type BusSink struct {
	Bus eventbus.Bus
}

func (s BusSink) AttemptSucceeded(o Outcome) {
	if s.Bus != nil {
		s.Bus.Publish(eventbus.Event{Type: eventbus.EventSent, Time: o.At, Data: o})
	}
}

func (s BusSink) AttemptFailed(o Outcome) {
	if s.Bus != nil {
		s.Bus.Publish(eventbus.Event{Type: eventbus.EventFailed, Time: o.At, Data: o})
	}
}

func (s BusSink) RunFinished(sum Summary) {
	if s.Bus != nil {
		s.Bus.Publish(eventbus.Event{Type: eventbus.EventFinished, Time: sum.FinishedAt, Data: sum})
	}
}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) AttemptSucceeded(o Outcome) {
	for _, s := range m {
		s.AttemptSucceeded(o)
	}
}

func (m MultiSink) AttemptFailed(o Outcome) {
	for _, s := range m {
		s.AttemptFailed(o)
	}
}

func (m MultiSink) RunFinished(sum Summary) {
	for _, s := range m {
		s.RunFinished(sum)
	}
}
