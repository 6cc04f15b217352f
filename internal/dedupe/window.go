// ABOUTME: Sliding window of recently seen event keys, bounded by age and count
// ABOUTME: Transports use it to drop replayed updates and double-pressed buttons

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key  string
	seen time.Time
}

// Window remembers keys for a fixed duration. Expired entries are pruned on
// access, oldest first, so no background goroutine is needed.
type Window struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxKeys int
	keys    map[string]*list.Element
	order   *list.List // oldest at front
	now     func() time.Time
}

// NewWindow creates a Window. maxKeys <= 0 means unbounded.
func NewWindow(ttl time.Duration, maxKeys int) *Window {
	return &Window{
		ttl:     ttl,
		maxKeys: maxKeys,
		keys:    make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Observe records key and reports whether it was already inside the window.
// A repeat does not extend the key's lifetime.
func (w *Window) Observe(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)

	if _, ok := w.keys[key]; ok {
		return true
	}

	if w.maxKeys > 0 && w.order.Len() >= w.maxKeys {
		w.removeLocked(w.order.Front())
	}
	w.keys[key] = w.order.PushBack(&entry{key: key, seen: now})
	return false
}

// Forget drops key so the next Observe treats it as new.
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if el, ok := w.keys[key]; ok {
		w.removeLocked(el)
	}
}

// Len returns the number of live keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.now())
	return w.order.Len()
}

// pruneLocked drops expired entries from the front. Insertion order equals
// time order, so the scan stops at the first live entry.
func (w *Window) pruneLocked(now time.Time) {
	for el := w.order.Front(); el != nil; el = w.order.Front() {
		if now.Sub(el.Value.(*entry).seen) < w.ttl {
			return
		}
		w.removeLocked(el)
	}
}

func (w *Window) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	e := w.order.Remove(el).(*entry)
	delete(w.keys, e.key)
}
