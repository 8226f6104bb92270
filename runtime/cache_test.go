package runtime

import (
	"sync"
	"sync/atomic"
	"testing"
)

func testCache(t *testing.T, protected, probationary int, memLimit int64) *Cache {
	t.Helper()
	c, err := NewCache(Config{
		ProtectedCacheSize:    protected,
		ProbationaryCacheSize: probationary,
		MemoryLimitBytes:      memLimit,
	})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return c
}

func TestCacheGetMissThenHit(t *testing.T) {
	c := testCache(t, 4, 4, 1<<20)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Put("a", 42, 8, false)
	v, ok := c.Get("a")
	if !ok || v.(int) != 42 {
		t.Fatalf("got %v, %v; want 42, true", v, ok)
	}
}

func TestCacheBuildCoalescesConcurrentCallers(t *testing.T) {
	c := testCache(t, 4, 4, 1<<20)

	var calls int32
	var wg sync.WaitGroup
	results := make([]any, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Build("shared", false, func() (any, int64, error) {
				atomic.AddInt32(&calls, 1)
				return "built", 8, nil
			})
			if err != nil {
				t.Errorf("Build: %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("build function ran %d times, want exactly 1", got)
	}
	for i, v := range results {
		if v != "built" {
			t.Fatalf("result %d = %v, want \"built\"", i, v)
		}
	}
}

func TestCacheBuildDoesNotCacheErrors(t *testing.T) {
	c := testCache(t, 4, 4, 1<<20)

	_, err := c.Build("k", false, func() (any, int64, error) {
		return nil, 0, errBoom
	})
	if err != errBoom {
		t.Fatalf("got err %v, want errBoom", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatalf("a failed build must not populate the cache")
	}

	var called bool
	v, err := c.Build("k", false, func() (any, int64, error) {
		called = true
		return "ok", 4, nil
	})
	if err != nil || v != "ok" || !called {
		t.Fatalf("retry after a failed build should run fn again: v=%v err=%v called=%v", v, err, called)
	}
}

func TestCacheEvictsProbationaryBeforeProtected(t *testing.T) {
	c := testCache(t, 10, 10, 20)

	c.Put("protected", "p", 10, true)
	c.Put("probationary", "q", 10, false)
	if c.memUsed > 20 {
		t.Fatalf("memUsed = %d before any pressure, want <= 20", c.memUsed)
	}

	c.Put("another", "r", 10, false)

	if _, ok := c.Get("probationary"); ok {
		t.Fatalf("probationary entry should have been evicted under memory pressure")
	}
	if _, ok := c.Get("protected"); !ok {
		t.Fatalf("protected entry should survive while probationary entries remain evictable")
	}
	if _, ok := c.Get("another"); !ok {
		t.Fatalf("the newly inserted probationary entry should still be present")
	}
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom error = boomError{}
