package httpx_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/tokbench/pkg/httpx"
)

// respond scripts an attempt that gets a response with the given status.
func respond(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}, nil
	}
}

// fail scripts an attempt that fails at the transport level.
func fail(message string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) { return nil, errors.New(message) }
}

// newRewindableRequest builds a POST whose body can be replayed.
func newRewindableRequest(ctx context.Context, body string) *http.Request {
	req := httptest.NewRequestWithContext(ctx, http.MethodPost, "http://localhost:8080/v1/chat/completions", nil)
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte(body))), nil
	}
	return req
}

// TestRetryClient_DoRetry verifies which outcomes are retried and which are returned.
func TestRetryClient_DoRetry(t *testing.T) {
	type testCase struct {
		name        string
		maxAttempts int
		delay       time.Duration
		responses   []func(*http.Request) (*http.Response, error)
		ctx         context.Context
		// expectedStatus is zero when an error is expected.
		expectedStatus int
		expectedErr    string
	}

	// --- Test Cases ---
	testCases := []testCase{
		{
			name:           "Success on First Attempt",
			maxAttempts:    3,
			delay:          10 * time.Millisecond,
			responses:      []func(*http.Request) (*http.Response, error){respond(http.StatusOK, "ok")},
			ctx:            context.Background(),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Success After Connection Refused",
			maxAttempts:    3,
			delay:          10 * time.Millisecond,
			responses:      []func(*http.Request) (*http.Response, error){fail("connection refused"), respond(http.StatusOK, "ok")},
			ctx:            context.Background(),
			expectedStatus: http.StatusOK,
		},
		{
			name:        "Success After Model Finishes Loading",
			maxAttempts: 3,
			delay:       10 * time.Millisecond,
			responses: []func(*http.Request) (*http.Response, error){
				respond(http.StatusServiceUnavailable, "loading"),
				respond(http.StatusBadGateway, "upstream starting"),
				respond(http.StatusOK, "ok"),
			},
			ctx:            context.Background(),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Non-Retryable Status Is Returned As-Is",
			maxAttempts:    3,
			delay:          10 * time.Millisecond,
			responses:      []func(*http.Request) (*http.Response, error){respond(http.StatusBadRequest, "bad request")},
			ctx:            context.Background(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "Failure After All Retries Exhausted",
			maxAttempts: 3,
			delay:       10 * time.Millisecond,
			responses: []func(*http.Request) (*http.Response, error){
				fail("attempt 1 failed"), fail("attempt 2 failed"), respond(http.StatusServiceUnavailable, "loading"),
			},
			ctx:         context.Background(),
			expectedErr: "all 3 attempts failed, last error: retryable status code: 503",
		},
		{
			name:        "Single Attempt When Unset",
			maxAttempts: 0,
			responses:   []func(*http.Request) (*http.Response, error){fail("connection refused")},
			ctx:         context.Background(),
			expectedErr: "all 1 attempts failed",
		},
		{
			name:        "Context Canceled During Retry Delay",
			maxAttempts: 3,
			// Longer than the context's deadline, so the wait is what gets interrupted.
			delay:     100 * time.Millisecond,
			responses: []func(*http.Request) (*http.Response, error){fail("transient error")},
			ctx: func() context.Context {
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
				_ = cancel // The timeout will trigger the cancellation.
				return ctx
			}(),
			expectedErr: "context deadline exceeded",
		},
	}

	// --- Test Runner ---
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &httpx.RetryClient{
				Client: &http.Client{Transport: &mockRoundTripper{responses: tc.responses}},
				Policy: httpx.RetryPolicy{
					MaxAttempts: tc.maxAttempts,
					Delay:       tc.delay,
					RetryStatus: httpx.RetryOnUnavailable,
				},
			}

			resp, err := client.DoRetry(newRewindableRequest(tc.ctx, `{"model":"m"}`))

			if tc.expectedErr != "" {
				assert.ErrorContains(t, err, tc.expectedErr)
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.expectedStatus, resp.StatusCode)
			// It is the caller's responsibility to close the body on success.
			_ = resp.Body.Close()
		})
	}
}

// TestRetryClient_DoRetry_ReplaysBody checks that every attempt sends the full body.
func TestRetryClient_DoRetry_ReplaysBody(t *testing.T) {
	const body = `{"model":"m","stream":false}`

	var received []string
	record := func(status int) func(*http.Request) (*http.Response, error) {
		return func(r *http.Request) (*http.Response, error) {
			content, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			received = append(received, string(content))
			return respond(status, "")(r)
		}
	}

	client := &httpx.RetryClient{
		Client: &http.Client{Transport: &mockRoundTripper{responses: []func(*http.Request) (*http.Response, error){
			record(http.StatusServiceUnavailable), record(http.StatusOK),
		}}},
		Policy: httpx.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond, RetryStatus: httpx.RetryOnUnavailable},
	}

	resp, err := client.DoRetry(newRewindableRequest(context.Background(), body))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, []string{body, body}, received)
}

// TestRetryClient_DoRetry_Backoff checks that delays double and respect MaxDelay.
func TestRetryClient_DoRetry_Backoff(t *testing.T) {
	client := &httpx.RetryClient{
		Client: &http.Client{Transport: &mockRoundTripper{responses: []func(*http.Request) (*http.Response, error){
			fail("1"), fail("2"), fail("3"), fail("4"),
		}}},
		// Waits of 20ms, 40ms then 40ms (capped) add up to 100ms.
		Policy: httpx.RetryPolicy{MaxAttempts: 4, Delay: 20 * time.Millisecond, MaxDelay: 40 * time.Millisecond},
	}

	start := time.Now()
	_, err := client.DoRetry(newRewindableRequest(context.Background(), "{}"))
	elapsed := time.Since(start)

	assert.ErrorContains(t, err, "all 4 attempts failed")
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

// TestRetryClient_DoRetry_NoGetBody validates that the function correctly
// rejects requests that cannot be retried because they lack a GetBody method.
func TestRetryClient_DoRetry_NoGetBody(t *testing.T) {
	client := &httpx.RetryClient{
		Client: http.DefaultClient,
		Policy: httpx.RetryPolicy{MaxAttempts: 3, Delay: 10 * time.Millisecond},
	}
	req := httptest.NewRequest(http.MethodPost, "http://localhost:8080/v1/chat/completions", nil)

	resp, err := client.DoRetry(req)
	assert.Nil(t, resp)
	assert.ErrorContains(t, err, "GetBody function must be set")
}
