// Package streams provides generic, pull-based stream iterators.
//
// A Stream wraps a source channel and lets the consumer pull items one at a
// time, optionally racing each pull against a context. Transformations such as
// Map run synchronously inside the consumer's goroutine, so building a pipeline
// does not spawn goroutines or allocate intermediate channels.
//
// This matters for latency measurement: the producer stamps each item when it
// arrives off the wire, and any work done in a Map happens after the stamp,
// never between the read and the stamp.
package streams

import (
	"context"
)

// Stream represents a lazy, pull-based iterator over a sequence of items of type T.
//
// The zero value of a Stream is not useful and will panic if pulled from.
type Stream[T any] struct {
	next func(ctx context.Context) (T, bool, error)
}

// New creates a new Stream from a read-only channel.
//
// The returned Stream produces items until the source channel is closed and drained.
func New[T any](sourceChan <-chan T) *Stream[T] {
	return &Stream[T]{
		next: func(ctx context.Context) (T, bool, error) {
			select {
			case <-ctx.Done():
				var zero T
				return zero, false, ctx.Err()
			case val, ok := <-sourceChan:
				return val, ok, nil
			}
		},
	}
}

// Map returns a new Stream that applies conv to each item of the source Stream.
//
// The conversion is lazy; it runs only when the returned Stream is pulled.
func Map[T, U any](sourceStream *Stream[T], conv func(T) U) *Stream[U] {
	return &Stream[U]{
		next: func(ctx context.Context) (U, bool, error) {
			val, ok, err := sourceStream.next(ctx)
			if err != nil || !ok {
				var zero U
				return zero, false, err
			}
			return conv(val), true, nil
		},
	}
}

// Next produces the next item from the stream, blocking until one is available.
//
// The ok flag is false once the stream is exhausted.
func (s *Stream[T]) Next() (T, bool) {
	val, ok, _ := s.next(context.Background())
	return val, ok
}

// NextContext is like Next, but gives up and returns the context's error if
// ctx is done before an item is available.
func (s *Stream[T]) NextContext(ctx context.Context) (T, bool, error) {
	return s.next(ctx)
}

// Exhaust pulls every remaining item into a slice.
//
// If the context is done first, the partially collected items are discarded
// and the context's error is returned.
func (s *Stream[T]) Exhaust(ctx context.Context) ([]T, error) {
	var items []T
	for {
		item, ok, err := s.next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}

// All is a range-over-func iterator over the remaining items.
func (s *Stream[T]) All(yield func(T) bool) {
	for {
		item, ok := s.Next()
		if !ok || !yield(item) {
			return
		}
	}
}
