package transport

import "context"

// Message is one fully-materialized notification request.
//
// Optional attributes (Title, Tags, Priority, Delay) are omitted from
// the outgoing request when they hold their zero value; the dispatch
// loop never fills placeholders.
type Message struct {
	Topic    string
	Body     string
	Title    string
	Tags     []string
	Priority int    // 1..5, 0 = unset
	Delay    string // server-side delivery delay, e.g. "30m", "1h"
}

// Result carries response metadata for a delivered message.
type Result struct {
	StatusCode int
	Body       string
}

// Sender performs one network delivery of a message.
//
// Implementations must honor ctx cancellation and must not retain
// references to the message after returning. When the server rejects
// a request, implementations should return the Result metadata
// (status code, body) alongside the error.
type Sender interface {
	Send(ctx context.Context, m Message) (Result, error)
}

// SenderFunc adapts a plain function to the Sender interface.
type SenderFunc func(ctx context.Context, m Message) (Result, error)

func (f SenderFunc) Send(ctx context.Context, m Message) (Result, error) { return f(ctx, m) }
