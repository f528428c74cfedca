package streams_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/tokbench/pkg/streams"
)

// chunk stands in for a timestamped piece of a response.
type chunk struct {
	text string
	at   time.Time
}

// newChunkChannel returns a closed, buffered channel holding the given texts.
func newChunkChannel(texts ...string) chan chunk {
	ch := make(chan chunk, len(texts))
	for _, text := range texts {
		ch <- chunk{text: text, at: time.Now()}
	}
	close(ch)
	return ch
}

// TestStream_NextContext verifies iteration, chained maps and cancellation.
func TestStream_NextContext(t *testing.T) {
	type testCase struct {
		name          string
		setupStream   func() *streams.Stream[string]
		ctx           context.Context
		expectedItems []string
		expectedErr   error
	}

	// --- Test Cases ---
	testCases := []testCase{
		{
			name: "Mapped Stream",
			setupStream: func() *streams.Stream[string] {
				return streams.Map(streams.New(newChunkChannel("Hello", " world")), func(c chunk) string {
					return c.text
				})
			},
			ctx:           context.Background(),
			expectedItems: []string{"Hello", " world"},
		},
		{
			name: "Chained Maps Apply In Order",
			setupStream: func() *streams.Stream[string] {
				texts := streams.Map(streams.New(newChunkChannel("a", "b")), func(c chunk) string { return c.text })
				upper := streams.Map(texts, strings.ToUpper)
				return streams.Map(upper, func(s string) string { return s + "!" })
			},
			ctx:           context.Background(),
			expectedItems: []string{"A!", "B!"},
		},
		{
			name: "Empty Stream",
			setupStream: func() *streams.Stream[string] {
				return streams.Map(streams.New(newChunkChannel()), func(c chunk) string { return "unexpected" })
			},
			ctx:           context.Background(),
			expectedItems: nil,
		},
		{
			name: "Context Deadline On A Silent Source",
			setupStream: func() *streams.Stream[string] {
				// Nothing is ever sent, so only the context can end the pull.
				return streams.Map(streams.New(make(chan chunk)), func(c chunk) string { return "unexpected" })
			},
			ctx: func() context.Context {
				ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				_ = cancel // The timeout will trigger the cancellation.
				return ctx
			}(),
			expectedItems: nil,
			expectedErr:   context.DeadlineExceeded,
		},
	}

	// --- Test Runner ---
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stream := tc.setupStream()
			require.NotNil(t, stream)

			var items []string
			var finalErr error
			for {
				item, ok, err := stream.NextContext(tc.ctx)
				if err != nil {
					finalErr = err
					break
				}
				if !ok {
					break
				}
				items = append(items, item)
			}

			assert.Equal(t, tc.expectedItems, items)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, finalErr, tc.expectedErr)
			} else {
				assert.NoError(t, finalErr)
			}
		})
	}
}

// TestMap_Lazy verifies that conversions run on pull, never ahead of it, so a
// timestamp taken by the producer is not delayed by downstream work.
func TestMap_Lazy(t *testing.T) {
	var calls int
	stream := streams.Map(streams.New(newChunkChannel("x", "y", "z")), func(c chunk) time.Time {
		calls++
		return c.at
	})
	assert.Zero(t, calls, "Nothing should be converted before the first pull.")

	_, ok := stream.Next()
	require.True(t, ok)
	assert.Equal(t, 1, calls)

	_, ok = stream.Next()
	require.True(t, ok)
	assert.Equal(t, 2, calls)
}

// TestStream_Exhaust verifies the behavior of the convenience Exhaust method.
func TestStream_Exhaust(t *testing.T) {
	t.Run("Successful Exhaust", func(t *testing.T) {
		texts := streams.Map(streams.New(newChunkChannel("one", "two")), func(c chunk) string { return c.text })

		items, err := texts.Exhaust(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, items)
	})

	t.Run("Exhaust with Context Cancellation", func(t *testing.T) {
		ch := make(chan chunk, 1)
		ch <- chunk{text: "partial"}
		stream := streams.New(ch) // Never closed.

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		items, err := stream.Exhaust(ctx)
		assert.Nil(t, items, "Partial items should be discarded on error.")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

// TestStream_Next tests the non-cancellable convenience method.
func TestStream_Next(t *testing.T) {
	stream := streams.New(newChunkChannel("hello"))

	item, ok := stream.Next()
	assert.True(t, ok)
	assert.Equal(t, "hello", item.text)

	// Second call should indicate the stream is exhausted.
	item, ok = stream.Next()
	assert.False(t, ok)
	assert.Equal(t, chunk{}, item, "Exhausted stream should return zero value.")
}

// TestStream_All verifies range-over-func iteration, including early exit.
func TestStream_All(t *testing.T) {
	stream := streams.Map(streams.New(newChunkChannel("a", "bb", "ccc", "dddd")), func(c chunk) int {
		return len(c.text)
	})

	var got []int
	for n := range stream.All {
		if n > 3 {
			break
		}
		got = append(got, n)
	}

	assert.Equal(t, []int{1, 2, 3}, got)
}
