package bench

import (
	"time"
)

// timings holds the timing bookkeeping of a single stream run.
type timings struct {
	start, end  time.Time
	first, last time.Time
	tokens      int
}

// record registers the arrival of one token-carrying event.
func (t *timings) record(at time.Time) {
	if t.tokens == 0 {
		t.first = at
	}
	t.last = at
	t.tokens++
}

// result converts the timings into a successful RequestResult.
//
// A stream that produced no tokens is still a success, with zero TTFT, ITL and TPS.
func (t *timings) result(requestID int) RequestResult {
	result := RequestResult{
		RequestID:  requestID,
		Success:    true,
		TokenCount: t.tokens,
		Latency:    t.end.Sub(t.start),
	}

	if t.tokens > 0 {
		result.TTFT = t.first.Sub(t.start)
	}
	// ITL excludes the first token, whose wait is already TTFT.
	if t.tokens > 1 {
		result.ITL = t.last.Sub(t.first) / time.Duration(t.tokens-1)
	}
	if result.Latency > 0 {
		result.TPS = float64(t.tokens) / result.Latency.Seconds()
	}

	return result
}
