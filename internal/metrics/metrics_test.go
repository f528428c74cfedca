package metrics_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/tokbench/internal/metrics"
	"github.com/shivanshkc/tokbench/pkg/bench"
)

func TestRecorder(t *testing.T) {
	recorder := metrics.NewRecorder()
	var observer bench.Observer = recorder

	observer.LevelStarted(3, 4)
	observer.RequestFinished(3, bench.RequestResult{
		Success: true, TTFT: 100 * time.Millisecond, ITL: 10 * time.Millisecond,
		Latency: time.Second, TokenCount: 40, SkippedFrames: 1,
	})
	observer.RequestFinished(3, bench.RequestResult{Success: true, Latency: 50 * time.Millisecond})
	observer.RequestFinished(3, bench.RequestResult{ErrorKind: bench.ErrorKindStatus, StatusCode: 503})
	observer.RequestFinished(3, bench.RequestResult{ErrorKind: bench.ErrorKindTimeout})
	observer.LevelFinished(bench.LevelReport{Concurrency: 3, SystemTPS: 37.5, SystemQPS: 1.25})

	assert.Equal(t, 3.0, testutil.ToFloat64(recorder.Concurrency))
	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.Requests.WithLabelValues("3", metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.Requests.WithLabelValues("3", string(bench.ErrorKindStatus))))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.Requests.WithLabelValues("3", string(bench.ErrorKindTimeout))))
	assert.Equal(t, 40.0, testutil.ToFloat64(recorder.Tokens.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.SkippedFrames.WithLabelValues("3")))
	assert.Equal(t, 37.5, testutil.ToFloat64(recorder.SystemTPS.WithLabelValues("3")))
	assert.Equal(t, 1.25, testutil.ToFloat64(recorder.SystemQPS.WithLabelValues("3")))

	// A request without tokens records latency but no TTFT.
	observer.RequestFinished(5, bench.RequestResult{Success: true, Latency: time.Second})
	assert.Equal(t, 1, testutil.CollectAndCount(recorder.TTFT))
	assert.Equal(t, 2, testutil.CollectAndCount(recorder.Latency))
	problems, err := testutil.GatherAndLint(recorder.Registry())
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestRecorder_Handler(t *testing.T) {
	recorder := metrics.NewRecorder()
	recorder.RequestFinished(1, bench.RequestResult{Success: true, TokenCount: 2, Latency: time.Second})

	server := httptest.NewServer(recorder.Handler())
	defer server.Close()

	response, err := http.Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), `tokbench_requests_total{concurrency="1",outcome="success"} 1`)
}

func TestRecorder_Serve(t *testing.T) {
	// Reserve a free port, then hand it to the server.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errServe := make(chan error, 1)
	go func() { errServe <- metrics.NewRecorder().Serve(ctx, addr, slog.New(slog.DiscardHandler)) }()

	require.Eventually(t, func() bool {
		response, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		_ = response.Body.Close()
		return response.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errServe:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
