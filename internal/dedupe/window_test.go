// ABOUTME: Tests for the dedupe window
// ABOUTME: Uses a fake clock for expiry and checks the size bound under concurrency

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestWindow(ttl time.Duration, maxKeys int) (*Window, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	w := NewWindow(ttl, maxKeys)
	w.now = clock.Now
	return w, clock
}

func TestWindow_FirstObserveIsNew(t *testing.T) {
	w, _ := newTestWindow(time.Minute, 10)

	assert.False(t, w.Observe("update:1"))
	assert.True(t, w.Observe("update:1"))
	assert.False(t, w.Observe("update:2"))
}

func TestWindow_Expiry(t *testing.T) {
	w, clock := newTestWindow(time.Minute, 10)

	w.Observe("a")
	clock.Advance(30 * time.Second)
	assert.True(t, w.Observe("a"), "repeat inside the window")

	clock.Advance(31 * time.Second)
	assert.False(t, w.Observe("a"), "repeats do not extend the window")
	assert.Equal(t, 1, w.Len())
}

func TestWindow_EvictsOldestAtCapacity(t *testing.T) {
	w, _ := newTestWindow(time.Hour, 3)

	for _, k := range []string{"a", "b", "c", "d"} {
		w.Observe(k)
	}
	assert.Equal(t, 3, w.Len())
	assert.False(t, w.Observe("a"), "oldest key was evicted")
	assert.True(t, w.Observe("d"))
}

func TestWindow_Forget(t *testing.T) {
	w, _ := newTestWindow(time.Hour, 0)
	w.Observe("a")
	w.Forget("a")
	w.Forget("missing")
	assert.False(t, w.Observe("a"))
}

func TestWindow_ConcurrentObserveSingleWinner(t *testing.T) {
	w := NewWindow(time.Minute, 1000)

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			if !w.Observe("same") {
				fresh.Add(1)
			}
		})
	}
	for i := range 50 {
		wg.Go(func() {
			w.Observe(fmt.Sprintf("k-%d", i))
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load())
	assert.Equal(t, 51, w.Len())
}
