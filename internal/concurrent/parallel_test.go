package concurrent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapKeepsOrder(t *testing.T) {
	items := []int{3, 1, 4, 1, 5}

	results := Map(context.Background(), items, 0, func(_ context.Context, n int) (string, error) {
		if n == 4 {
			return "", errors.New("four")
		}
		return fmt.Sprint(n * 2), nil
	})

	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, "6", results[0].Value)
	assert.Equal(t, "2", results[1].Value)
	assert.EqualError(t, results[2].Err, "four")
	assert.Equal(t, "10", results[4].Value)
}

func TestMapEmpty(t *testing.T) {
	results := Map(context.Background(), nil, 4, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	assert.Empty(t, results)
}

func TestMapRespectsLimit(t *testing.T) {
	var running, peak atomic.Int32

	items := make([]int, 20)
	results := Map(context.Background(), items, 3, func(_ context.Context, _ int) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return 0, nil
	})

	require.Len(t, results, len(items))
	assert.LessOrEqual(t, peak.Load(), int32(3))
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestMapCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results := Map(ctx, []int{1, 2, 3}, 1, func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		return n, nil
	})

	require.Len(t, results, 3)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, calls.Load())
}
