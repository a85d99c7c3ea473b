package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeque_OwnerLIFOStealFIFO(t *testing.T) {
	d := NewDeque[int](8)
	vals := []int{1, 2, 3, 4}
	for i := range vals {
		require.True(t, d.PushBottom(&vals[i]))
	}
	require.Equal(t, 4, d.Len())

	v, ok := d.PopBottom()
	require.True(t, ok)
	require.Equal(t, 4, *v, "owner pops most recent")

	v, ok = d.Steal()
	require.True(t, ok)
	require.Equal(t, 1, *v, "stealer takes oldest")

	v, _ = d.PopBottom()
	require.Equal(t, 3, *v)
	v, _ = d.Steal()
	require.Equal(t, 2, *v)

	_, ok = d.PopBottom()
	require.False(t, ok)
	_, ok = d.Steal()
	require.False(t, ok)
	require.Equal(t, 0, d.Len())
}

func TestDeque_FullRejectsPush(t *testing.T) {
	d := NewDeque[int](3)
	require.Equal(t, 4, d.Cap())
	x := 7
	for i := 0; i < d.Cap(); i++ {
		require.True(t, d.PushBottom(&x))
	}
	require.False(t, d.PushBottom(&x))
	_, ok := d.Steal()
	require.True(t, ok)
	require.True(t, d.PushBottom(&x), "slot freed by steal is reusable")
}

// Owner pushes and pops while many thieves steal; every value must be
// taken exactly once.
func TestDeque_ConcurrentAtMostOnce(t *testing.T) {
	const (
		total   = 200000
		thieves = 8
	)
	d := NewDeque[int](256)
	values := make([]int, total)
	seen := make([]atomic.Int32, total)
	var taken atomic.Int64
	var done atomic.Bool

	take := func(v *int) {
		seen[*v].Add(1)
		taken.Add(1)
	}

	var wg sync.WaitGroup
	for i := 0; i < thieves; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !done.Load() || d.Len() > 0 {
				if v, ok := d.Steal(); ok {
					take(v)
				} else {
					runtime.Gosched()
				}
			}
		}()
	}

	for i := 0; i < total; i++ {
		values[i] = i
		for !d.PushBottom(&values[i]) {
			if v, ok := d.PopBottom(); ok {
				take(v)
			}
		}
		if i%3 == 0 {
			if v, ok := d.PopBottom(); ok {
				take(v)
			}
		}
	}
	for {
		v, ok := d.PopBottom()
		if !ok {
			break
		}
		take(v)
	}
	done.Store(true)

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatalf("timeout: taken %d/%d", taken.Load(), total)
	}

	require.Equal(t, int64(total), taken.Load())
	for i := range seen {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("value %d taken %d times", i, n)
		}
	}
}
