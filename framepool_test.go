package uvlink

import (
	"sync"
	"testing"
)

// TestFramePoolConcurrent tests that framePool is safe for concurrent access.
func TestFramePoolConcurrent(t *testing.T) {
	pool := newFramePool(4)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf, pooled := pool.borrow(n)
				if len(buf) != n || !pooled {
					t.Errorf("borrow(%d) = len %d, pooled %v", n, len(buf), pooled)
					return
				}
				if n > 0 {
					buf[0] = byte(j)
				}
				pool.giveBack(buf)
			}
		}(i * 40)
	}
	wg.Wait()
}

func TestFramePoolReuse(t *testing.T) {
	pool := newFramePool(1)

	first, _ := pool.borrow(16)
	pool.giveBack(first)

	// a reply of another size reuses the same backing array
	again, pooled := pool.borrow(replyFrameSize)
	if !pooled {
		t.Fatal("reply-sized frame should come from the pool")
	}
	if &first[0] != &again[0] {
		t.Error("expected the returned buffer to be reused")
	}
	if len(again) != replyFrameSize {
		t.Errorf("Expected length %d, got %d", replyFrameSize, len(again))
	}
}

func TestFramePoolOversized(t *testing.T) {
	pool := newFramePool(1)

	buf, pooled := pool.borrow(replyFrameSize + 1)
	if pooled {
		t.Error("geometry-sized frame must not come from the pool")
	}
	if len(buf) != replyFrameSize+1 {
		t.Errorf("Expected length %d, got %d", replyFrameSize+1, len(buf))
	}
}

func TestFramePoolKeepsAtMostCount(t *testing.T) {
	pool := newFramePool(1)

	a, _ := pool.borrow(8)
	b, _ := pool.borrow(8)
	pool.giveBack(a)
	pool.giveBack(b) // dropped, pool already holds a

	got, _ := pool.borrow(8)
	if &got[0] != &a[0] {
		t.Error("expected the first returned buffer to be kept")
	}
	fresh, _ := pool.borrow(8)
	if &fresh[0] == &b[0] {
		t.Error("buffer returned to a full pool should have been dropped")
	}
}
