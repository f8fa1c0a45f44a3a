package fanout

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultWorkers caps in-flight calls when the caller does not choose a limit.
const DefaultWorkers = 10

// ErrNotDispatched marks inputs skipped because the context ended before a worker took them.
var ErrNotDispatched = errors.New("fanout: input not dispatched")

// Result is the per-input outcome: either a value or the reason it was dropped.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool { return r.Err == nil }

// Options bounds a fan-out.
type Options struct {
	// Workers is the maximum number of concurrent calls. <= 0 means DefaultWorkers.
	Workers int
	// Delay spaces out calls across all workers when > 0.
	Delay time.Duration
}

// Map runs fn once per input on a bounded worker pool and waits for every call to settle.
// The returned slice is index-aligned with inputs regardless of completion order.
func Map[In, Out any](ctx context.Context, inputs []In, opts Options, fn func(ctx context.Context, idx int, in In) (Out, error)) []Result[Out] {
	out := make([]Result[Out], len(inputs))
	if len(inputs) == 0 {
		return out
	}
	if ctx == nil {
		ctx = context.Background()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	workerCount := min(len(inputs), workers)

	var limiter <-chan time.Time
	if opts.Delay > 0 {
		ticker := time.NewTicker(opts.Delay)
		defer ticker.Stop()
		limiter = ticker.C
	}

	// Until a worker claims an index, its slot reports it as not dispatched.
	for i := range out {
		out[i].Err = ErrNotDispatched
	}

	jobCh := make(chan int)
	var wg sync.WaitGroup

	for range workerCount {
		wg.Add(1)
		go worker(ctx, inputs, limiter, jobCh, out, &wg, fn)
	}

	for idx := range inputs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case jobCh <- idx:
		}
	}
	close(jobCh)

	wg.Wait()

	return out
}

// worker drains jobCh, writing each outcome into its own slot of out.
func worker[In, Out any](
	ctx context.Context,
	inputs []In,
	limiter <-chan time.Time,
	jobCh <-chan int,
	out []Result[Out],
	wg *sync.WaitGroup,
	fn func(ctx context.Context, idx int, in In) (Out, error),
) {
	defer wg.Done()

	for idx := range jobCh {
		if limiter != nil {
			select {
			case <-ctx.Done():
				out[idx] = Result[Out]{Err: ctx.Err()}
				continue
			case <-limiter:
			}
		}

		val, err := fn(ctx, idx, inputs[idx])
		out[idx] = Result[Out]{Value: val, Err: err}
	}
}

// Present flattens results into the values that succeeded, keeping input order.
func Present[T any](results []Result[T]) []T {
	vals := make([]T, 0, len(results))
	for _, r := range results {
		if r.OK() {
			vals = append(vals, r.Value)
		}
	}
	return vals
}
