package bench

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shivanshkc/tokbench/pkg/api"
)

// Collector runs one streaming request and turns its events into a RequestResult.
type Collector struct {
	// Stream starts the request.
	Stream StreamFunc
	// Timeout bounds the whole request, including reading the stream.
	// Zero means the request can block for as long as the transport allows.
	Timeout time.Duration
	// Logger receives debug records about individual requests. Nil uses slog.Default.
	Logger *slog.Logger
	// Now is the clock used for the start and end of a request. Nil uses time.Now.
	// Token timestamps come from the events themselves.
	Now func() time.Time
}

// Collect executes request number requestID and returns its result.
//
// It never returns an error: failures are reported through the result, tagged
// with their ErrorKind. Malformed events are skipped without failing the request.
func (c *Collector) Collect(ctx context.Context, requestID int) RequestResult {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	logger := c.logger().With("request_id", requestID)
	now := c.clock()

	var t timings
	var skipped int

	t.start = now()
	eventStream, err := c.Stream(ctx)
	if err != nil {
		return failure(ctx, requestID, err)
	}

	for {
		event, ok, err := eventStream.NextContext(ctx)
		if err != nil {
			return failure(ctx, requestID, err)
		}
		if !ok {
			break
		}

		if err := event.Err(); err != nil {
			if errors.Is(err, api.ErrMalformedEvent) {
				skipped++
				logger.Debug("skipping malformed frame", "error", err)
				continue
			}
			return failure(ctx, requestID, err)
		}

		if event.Content() == "" {
			continue
		}
		t.record(event.Timestamp())
	}
	t.end = now()

	result := t.result(requestID)
	result.SkippedFrames = skipped

	logger.Debug("request complete", "tokens", result.TokenCount, "latency", result.Latency)
	return result
}

// failure builds the failed RequestResult for err.
func failure(ctx context.Context, requestID int, err error) RequestResult {
	result := RequestResult{RequestID: requestID, ErrorKind: ErrorKindTransport, Error: err.Error()}

	var statusErr *api.StatusError
	switch {
	case errors.As(err, &statusErr):
		result.ErrorKind = ErrorKindStatus
		result.StatusCode = statusErr.StatusCode()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.ErrorKind = ErrorKindTimeout
	}

	return result
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Collector) clock() func() time.Time {
	if c.Now == nil {
		return time.Now
	}
	return c.Now
}
