package dispatch

import (
	kit "ntfyloop/internal/transport"
)

// BuildMessage materializes the outgoing request payload from cfg.
// It is pure: the same config always yields the same message, and the
// returned value shares no mutable state with cfg.
func BuildMessage(cfg Config) kit.Message {
	m := kit.Message{
		Topic:    cfg.Topic,
		Body:     cfg.Message,
		Title:    cfg.Title,
		Priority: cfg.Priority,
		Delay:    cfg.Delay,
	}
	if len(cfg.Tags) > 0 {
		m.Tags = append([]string(nil), cfg.Tags...)
	}
	return m
}
