package bench

import (
	"time"
)

// ErrorKind classifies why a request failed.
type ErrorKind string

const (
	// ErrorKindTransport covers connection, DNS and mid-stream read failures.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindStatus means the server answered with a non-200 status.
	ErrorKindStatus ErrorKind = "status"
	// ErrorKindTimeout means the per-request deadline expired.
	ErrorKindTimeout ErrorKind = "timeout"
)

// RequestResult is the outcome of one benchmarked request.
//
// Timing fields are only meaningful when Success is true; failure fields only
// when it is false.
type RequestResult struct {
	RequestID int  `json:"request_id" yaml:"request_id"`
	Success   bool `json:"success" yaml:"success"`

	TTFT       time.Duration `json:"ttft_ns,omitempty" yaml:"ttft_ns,omitempty"`
	ITL        time.Duration `json:"itl_ns,omitempty" yaml:"itl_ns,omitempty"`
	Latency    time.Duration `json:"latency_ns,omitempty" yaml:"latency_ns,omitempty"`
	TokenCount int           `json:"token_count,omitempty" yaml:"token_count,omitempty"`
	TPS        float64       `json:"tps,omitempty" yaml:"tps,omitempty"`
	// SkippedFrames counts frames that could not be decoded and were ignored.
	SkippedFrames int `json:"skipped_frames,omitempty" yaml:"skipped_frames,omitempty"`

	ErrorKind  ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	StatusCode int       `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Run is the raw outcome of dispatching all requests of one concurrency level.
type Run struct {
	Concurrency   int
	TotalRequests int
	// Results are in completion order, not request-id order.
	Results []RequestResult
	// WallTime spans from the start of the pool to the last completion.
	WallTime time.Duration
}

// Settings describes one benchmark session. It is built once and passed
// explicitly to everything that needs it.
type Settings struct {
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	// InputTokens is the prompt length in words.
	InputTokens int `json:"input_tokens" yaml:"input_tokens"`
	// OutputTokens is sent as max_tokens.
	OutputTokens      int           `json:"output_tokens" yaml:"output_tokens"`
	TotalRequests     int           `json:"total_requests" yaml:"total_requests"`
	ConcurrencyLevels []int         `json:"concurrency_levels" yaml:"concurrency_levels"`
	Cooldown          time.Duration `json:"cooldown_ns" yaml:"cooldown_ns"`
	// RequestTimeout bounds each request. Zero means no bound.
	RequestTimeout time.Duration `json:"request_timeout_ns" yaml:"request_timeout_ns"`
	// RateLimit caps request starts per second. Zero means no cap.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
}
