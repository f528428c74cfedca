package bench

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CollectFunc executes request number requestID and reports its outcome.
type CollectFunc func(ctx context.Context, requestID int) RequestResult

// Dispatcher executes a fixed number of requests with bounded concurrency.
type Dispatcher struct {
	// Concurrency is the number of requests allowed in flight at once.
	Concurrency int
	// Limiter, if set, paces request starts.
	Limiter *rate.Limiter
	// OnResult, if set, is called for every result in completion order.
	// Calls are never concurrent.
	OnResult func(RequestResult)
}

// completion is a result with the time its worker finished it.
type completion struct {
	result RequestResult
	at     time.Time
}

// Run executes requests 0..total-1 through a pool of Concurrency workers.
//
// Results are gathered in completion order. A failed request never stops its
// siblings and is never retried. If ctx is canceled, requests not yet started
// are dropped and the partial Run is returned with the context's error.
func (d *Dispatcher) Run(ctx context.Context, total int, collect CollectFunc) (Run, error) {
	run := Run{Concurrency: d.Concurrency, TotalRequests: total}
	if d.Concurrency <= 0 {
		return run, fmt.Errorf("concurrency must be greater than 0, got %d", d.Concurrency)
	}
	if total <= 0 {
		return run, nil
	}

	// Unbuffered, so a request id is only taken by a worker that is free to run it.
	tasks := make(chan int)
	// Room for every result, so workers never wait on the consumer.
	completions := make(chan completion, total)

	start := time.Now()

	var wg sync.WaitGroup
	for range min(d.Concurrency, total) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for requestID := range tasks {
				result := collect(ctx, requestID)
				completions <- completion{result: result, at: time.Now()}
			}
		}()
	}

	// The producer's error is only read after completions is closed, which
	// happens after the producer has returned.
	var errProduce error
	go func() {
		defer close(tasks)
		for requestID := range total {
			if d.Limiter != nil {
				if err := d.Limiter.Wait(ctx); err != nil {
					errProduce = fmt.Errorf("rate limiter: %w", err)
					return
				}
			}

			select {
			case <-ctx.Done():
				errProduce = ctx.Err()
				return
			case tasks <- requestID:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(completions)
	}()

	run.Results = make([]RequestResult, 0, total)
	last := start
	for c := range completions {
		if c.at.After(last) {
			last = c.at
		}
		run.Results = append(run.Results, c.result)
		if d.OnResult != nil {
			d.OnResult(c.result)
		}
	}
	run.WallTime = last.Sub(start)

	return run, errProduce
}
