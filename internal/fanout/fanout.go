// Package fanout runs a per-item operation over a set of inputs with bounded
// concurrency and collects the results through a single bounded channel.
package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Defaults match the reference dashboard behavior.
const (
	DefaultWorkers = 2
	DefaultBuffer  = 32
)

// Policy decides what a single item failure does to the rest of the batch.
type Policy int

const (
	// FailFast cancels outstanding work on the first error and discards
	// every collected result.
	FailFast Policy = iota
	// Isolate keeps going after item errors. Successful results are returned
	// together with an aggregated *multierror.Error.
	Isolate
)

// String returns a human-readable name for the policy.
func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case Isolate:
		return "isolate"
	default:
		return "unknown"
	}
}

// Options configures Map. Zero values select the defaults.
type Options struct {
	Workers int
	Buffer  int
	Policy  Policy
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Buffer <= 0 {
		o.Buffer = DefaultBuffer
	}
	return o
}

// Func fetches the value for one item. Returning ok=false means the item has
// nothing to contribute and is left out of the result.
type Func[K, V any] func(ctx context.Context, item K) (value V, ok bool, err error)

// Pair is one collected result.
type Pair[K, V any] struct {
	Item  K
	Value V
}

// Map applies fn to every item with at most opts.Workers calls in flight.
// Each worker runs one call to completion before the next item is handed
// out. Results arrive through a channel of capacity opts.Buffer drained by a
// single collector, so a slow collector applies backpressure to the workers.
// Map returns only after every worker has finished and the collector has
// drained; the order of the returned pairs is unspecified.
func Map[K, V any](ctx context.Context, items []K, fn Func[K, V], opts Options) ([]Pair[K, V], error) {
	opts = opts.withDefaults()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	results := make(chan Pair[K, V], opts.Buffer)
	collected := make(chan []Pair[K, V], 1)
	go func() {
		var pairs []Pair[K, V]
		for p := range results {
			pairs = append(pairs, p)
		}
		collected <- pairs
	}()

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			value, ok, err := fn(gctx, item)
			if err != nil {
				err = fmt.Errorf("%v: %w", item, err)
				if opts.Policy == FailFast {
					return err
				}
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
				return nil
			}
			if !ok {
				return nil
			}
			select {
			case results <- Pair[K, V]{Item: item, Value: value}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	err := g.Wait()
	close(results)
	pairs := <-collected

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pairs, errs.ErrorOrNil()
}
