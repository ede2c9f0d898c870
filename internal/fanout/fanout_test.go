package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func sortedItems(pairs []Pair[int, string]) []int {
	out := make([]int, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.Item)
	}
	sort.Ints(out)
	return out
}

func TestMap_CollectsAllValues(t *testing.T) {
	fn := func(_ context.Context, n int) (string, bool, error) {
		return fmt.Sprintf("v%d", n), true, nil
	}

	pairs, err := Map(context.Background(), seq(50), fn, Options{})
	require.NoError(t, err)
	require.Len(t, pairs, 50)
	assert.Equal(t, seq(50), sortedItems(pairs))

	for _, p := range pairs {
		assert.Equal(t, fmt.Sprintf("v%d", p.Item), p.Value)
	}
}

func TestMap_SkipsAbsentValues(t *testing.T) {
	fn := func(_ context.Context, n int) (string, bool, error) {
		if n%2 == 1 {
			return "", false, nil
		}
		return "even", true, nil
	}

	pairs, err := Map(context.Background(), seq(10), fn, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4, 6, 8}, sortedItems(pairs))
}

func TestMap_EmptyInput(t *testing.T) {
	fn := func(_ context.Context, _ int) (string, bool, error) {
		t.Fatal("fn must not be called")
		return "", false, nil
	}

	pairs, err := Map(context.Background(), nil, fn, Options{})
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestMap_BoundedConcurrency(t *testing.T) {
	for _, workers := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			var inFlight, peak atomic.Int32

			fn := func(_ context.Context, _ int) (string, bool, error) {
				cur := inFlight.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return "ok", true, nil
			}

			pairs, err := Map(context.Background(), seq(20), fn, Options{Workers: workers})
			require.NoError(t, err)
			assert.Len(t, pairs, 20)
			assert.LessOrEqual(t, int(peak.Load()), workers)
			assert.Equal(t, int32(0), inFlight.Load())
		})
	}
}

func TestMap_DefaultWorkerBound(t *testing.T) {
	var inFlight, peak atomic.Int32

	fn := func(_ context.Context, _ int) (string, bool, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", true, nil
	}

	_, err := Map(context.Background(), seq(10), fn, Options{})
	require.NoError(t, err)
	assert.LessOrEqual(t, int(peak.Load()), DefaultWorkers)
}

func TestMap_SmallBufferAppliesBackpressure(t *testing.T) {
	fn := func(_ context.Context, n int) (string, bool, error) {
		return "x", true, nil
	}

	pairs, err := Map(context.Background(), seq(100), fn, Options{Workers: 4, Buffer: 1})
	require.NoError(t, err)
	assert.Len(t, pairs, 100)
}

func TestMap_FailFast(t *testing.T) {
	var calls atomic.Int32
	fn := func(ctx context.Context, n int) (string, bool, error) {
		calls.Add(1)
		if n == 3 {
			return "", false, errors.New("remote unavailable")
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(time.Millisecond):
		}
		return "ok", true, nil
	}

	pairs, err := Map(context.Background(), seq(100), fn, Options{Workers: 2})
	require.Error(t, err)
	assert.Nil(t, pairs, "fail fast discards collected results")
	assert.Contains(t, err.Error(), "3: remote unavailable")
	assert.Less(t, int(calls.Load()), 100, "outstanding work is cancelled")
}

func TestMap_Isolate(t *testing.T) {
	fn := func(_ context.Context, n int) (string, bool, error) {
		if n == 2 || n == 7 {
			return "", false, fmt.Errorf("item %d failed", n)
		}
		return "ok", true, nil
	}

	pairs, err := Map(context.Background(), seq(10), fn, Options{Policy: Isolate})
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)

	assert.Equal(t, []int{0, 1, 3, 4, 5, 6, 8, 9}, sortedItems(pairs))
}

func TestMap_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := func(ctx context.Context, _ int) (string, bool, error) {
		return "ok", true, nil
	}

	_, err := Map(ctx, seq(5), fn, Options{Policy: Isolate})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "fail_fast", FailFast.String())
	assert.Equal(t, "isolate", Isolate.String())
}
