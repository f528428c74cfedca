package httpx

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetryPolicy controls how a RetryClient re-attempts a request.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Delay is the wait before the second attempt. It doubles after every
	// failed attempt, up to MaxDelay.
	Delay time.Duration
	// MaxDelay caps the wait between attempts. Zero means no cap.
	MaxDelay time.Duration
	// RetryStatus reports whether a response with the given status code should
	// be retried. A nil RetryStatus never retries on status.
	RetryStatus func(code int) bool
}

// RetryOnUnavailable retries when the server says it is not ready yet, which
// is what most inference servers answer while the model is still loading.
func RetryOnUnavailable(code int) bool {
	return code == http.StatusServiceUnavailable || code == http.StatusBadGateway
}

// RetryClient is an extension of the standard HTTP client that re-attempts
// requests according to its Policy.
//
// It is meant for one-off probes such as readiness checks. Benchmark traffic
// must never go through it, since a retried request would skew the timings.
type RetryClient struct {
	*http.Client
	Policy RetryPolicy
}

// DoRetry executes the request, retrying on transport errors and on statuses
// accepted by Policy.RetryStatus. The request must have GetBody set.
//
// On success the caller owns the response body.
func (rc *RetryClient) DoRetry(req *http.Request) (*http.Response, error) {
	// Request must be rewindable for retries.
	if req.GetBody == nil {
		return nil, fmt.Errorf("GetBody function must be set on the request for retrying")
	}

	attempts := max(rc.Policy.MaxAttempts, 1)
	delay := rc.Policy.Delay

	var errFinal error
	for i := 0; i < attempts; i++ {
		reqClone := req.Clone(req.Context())
		reqClone.RequestURI = ""

		bodyReader, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("error in the GetBody call: %w", err)
		}
		reqClone.Body = bodyReader

		response, err := rc.Do(reqClone)
		switch {
		case err != nil:
			errFinal = err
		case rc.Policy.RetryStatus != nil && rc.Policy.RetryStatus(response.StatusCode):
			// Drain so the connection can be reused by the next attempt.
			_, _ = io.Copy(io.Discard, response.Body)
			_ = response.Body.Close()
			errFinal = fmt.Errorf("retryable status code: %d", response.StatusCode)
		default:
			return response, nil
		}

		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-reqClone.Context().Done():
			timer.Stop()
			return nil, reqClone.Context().Err()
		case <-timer.C:
		}

		delay *= 2
		if rc.Policy.MaxDelay > 0 && delay > rc.Policy.MaxDelay {
			delay = rc.Policy.MaxDelay
		}
	}

	return nil, fmt.Errorf("all %d attempts failed, last error: %w", attempts, errFinal)
}
