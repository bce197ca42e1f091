package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out strictly increasing timestamps so access ordering is
// deterministic in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(time.Millisecond)
	return f.t
}

func newTestCache(capacity int) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := New(Options{Capacity: capacity})
	c.now = clock.Now
	return c, clock
}

func loaderOf(v any) func() (any, error) {
	return func() (any, error) { return v, nil }
}

func TestEvictionPrefersLeastFrequentThenOldest(t *testing.T) {
	c, _ := newTestCache(3)

	c.Put("A", 1)
	c.Put("B", 2)
	c.Put("C", 3)

	// All three have one access; A has the earliest timestamp, so inserting
	// a fourth key must evict A.
	c.Put("D", 4)

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Contains("A"))
	assert.True(t, c.Contains("B"))
	assert.True(t, c.Contains("C"))
	assert.True(t, c.Contains("D"))
}

func TestEvictionFrequencyBeatsRecency(t *testing.T) {
	c, _ := newTestCache(2)

	c.Put("old", 1)
	c.Put("new", 2)

	// Bump "old" so it is the more frequently accessed entry despite being
	// inserted first.
	_, err := c.Get("old", loaderOf(nil))
	require.NoError(t, err)

	c.Put("third", 3)

	assert.True(t, c.Contains("old"))
	assert.False(t, c.Contains("new"))
	assert.True(t, c.Contains("third"))
}

func TestCapacityInvariant(t *testing.T) {
	c, _ := newTestCache(5)
	for i := 0; i < 50; i++ {
		c.Put(fmt.Sprintf("key-%d", i), i)
		assert.LessOrEqual(t, c.Len(), 5)
	}
	assert.Equal(t, 5, c.Len())
}

func TestHitRate(t *testing.T) {
	c, _ := newTestCache(10)
	assert.Zero(t, c.HitRate())

	c.Put("k", "v")
	for i := 0; i < 3; i++ {
		v, err := c.Get("k", loaderOf(nil))
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	}
	_, err := c.Get("absent", loaderOf("loaded"))
	require.NoError(t, err)

	assert.InDelta(t, 0.75, c.HitRate(), 1e-9)

	stats := c.Stats()
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestGetMissStoresOnlyPresentValues(t *testing.T) {
	c, _ := newTestCache(10)

	v, err := c.Get("avg", loaderOf(87.5))
	require.NoError(t, err)
	assert.Equal(t, 87.5, v)
	assert.True(t, c.Contains("avg"))

	// Zero average means "no grades recorded" and must not be cached.
	v, err = c.Get("avg-empty", loaderOf(0.0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	assert.False(t, c.Contains("avg-empty"))

	// Same for an empty grade list.
	v, err = c.Get("grades-empty", loaderOf([]string{}))
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.False(t, c.Contains("grades-empty"))

	v, err = c.Get("nil", loaderOf(nil))
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.False(t, c.Contains("nil"))
}

func TestGetLoaderErrorPropagatesAndIsNotCached(t *testing.T) {
	c, _ := newTestCache(10)
	boom := errors.New("store unavailable")

	_, err := c.Get("k", func() (any, error) { return nil, boom })
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Contains("k"))

	// The failed lookup still counts as a miss.
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestRefreshSweepsStaleEntriesAndWarms(t *testing.T) {
	warmCalls := 0
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := New(Options{
		Capacity:   10,
		StaleAfter: time.Minute,
		WarmQuota:  2,
		Warm: func(ctx context.Context, quota int) ([]KV, error) {
			warmCalls++
			assert.Equal(t, 2, quota)
			return []KV{{Key: "hot-1", Value: 1}, {Key: "hot-2", Value: 2}}, nil
		},
	})
	c.now = clock.Now

	c.Put("stale", "v")

	// Age everything past the staleness window.
	clock.mu.Lock()
	clock.t = clock.t.Add(2 * time.Minute)
	clock.mu.Unlock()

	require.NoError(t, c.Refresh(context.Background()))
	assert.False(t, c.Contains("stale"))
	assert.True(t, c.Contains("hot-1"))
	assert.True(t, c.Contains("hot-2"))
	assert.Equal(t, 1, warmCalls)

	// A second refresh with no intervening access finds nothing new to
	// remove and leaves the warm set as-is.
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Contains("hot-1"))
	assert.True(t, c.Contains("hot-2"))

	// Warm inserts bypass hit/miss accounting.
	assert.Zero(t, c.HitRate())
}

func TestClearResetsEntriesAndCounters(t *testing.T) {
	c, _ := newTestCache(10)
	c.Put("k", "v")
	_, err := c.Get("k", loaderOf(nil))
	require.NoError(t, err)

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.HitRate())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestContentsSnapshot(t *testing.T) {
	c, _ := newTestCache(10)
	c.Put("b", 2)
	c.Put("a", 1)

	infos := c.Contents()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Key)
	assert.Equal(t, "b", infos[1].Key)
	assert.Equal(t, int64(1), infos[0].AccessCount)
}

func TestConcurrentGetPut(t *testing.T) {
	c := New(Options{Capacity: 20})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d", i%40)
				_, err := c.Get(key, loaderOf(i+1))
				assert.NoError(t, err)
				c.Put(fmt.Sprintf("w%d-%d", w, i%10), i)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 20)
	stats := c.Stats()
	assert.Equal(t, int64(1600), stats.Hits+stats.Misses)
}
