package bench

import (
	"context"
	"time"

	"github.com/shivanshkc/tokbench/pkg/api"
	"github.com/shivanshkc/tokbench/pkg/streams"
)

// Event is the building block of a stream.
//
// Only the arrival timestamp and whether the event carries generated text
// matter for benchmarking.
type Event interface {
	// Timestamp is the local time at which the event arrived.
	Timestamp() time.Time
	// Content is the generated text carried by the event, possibly empty.
	Content() string
	// Err is set if the event could not be read or decoded.
	Err() error
}

// StreamFunc starts one streaming request and returns its events.
//
// It must not retry. When the server rejects the request it should return an
// error wrapping an *api.StatusError, and events that cannot be decoded should
// carry an error wrapping api.ErrMalformedEvent.
type StreamFunc func(ctx context.Context) (*streams.Stream[Event], error)

// ChatCompletionStream returns a StreamFunc that sends the same chat-completion
// request through client every time it is called.
func ChatCompletionStream(client *api.Client, request api.ChatCompletionRequest) StreamFunc {
	return func(ctx context.Context) (*streams.Stream[Event], error) {
		eventStream, err := client.ChatCompletionStream(ctx, request)
		if err != nil {
			return nil, err
		}
		return streams.Map(eventStream, func(event api.ChatCompletionEvent) Event { return event }), nil
	}
}
