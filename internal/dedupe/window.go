// ABOUTME: Sliding time window of recently seen keys, used to reject replayed task ids.
// ABOUTME: Size-bounded; expired keys are swept lazily from the oldest end on each call.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxSize bounds a Window when no size is given.
const DefaultMaxSize = 10000

type seenKey struct {
	key string
	at  time.Time
}

// Window remembers keys for ttl. Keys are kept in the order they were last
// seen, so expiry and eviction both pop from the front.
type Window struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	index   map[string]*list.Element
	order   *list.List
	now     func() time.Time
}

// NewWindow creates a Window. A ttl <= 0 disables it: Seen always reports false.
func NewWindow(ttl time.Duration, maxSize int) *Window {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Window{
		ttl:     ttl,
		maxSize: maxSize,
		index:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Seen reports whether key was seen within the window and records it either
// way. The check and the record are atomic.
func (w *Window) Seen(key string) bool {
	if w.ttl <= 0 || key == "" {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.sweepLocked(now)

	if elem, ok := w.index[key]; ok {
		elem.Value.(*seenKey).at = now
		w.order.MoveToBack(elem)
		return true
	}

	if w.order.Len() >= w.maxSize {
		w.removeLocked(w.order.Front())
	}
	w.index[key] = w.order.PushBack(&seenKey{key: key, at: now})
	return false
}

// Forget drops key so the next Seen reports false.
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if elem, ok := w.index[key]; ok {
		w.removeLocked(elem)
	}
}

// Len returns the number of keys currently remembered.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sweepLocked(w.now())
	return w.order.Len()
}

func (w *Window) sweepLocked(now time.Time) {
	for front := w.order.Front(); front != nil; front = w.order.Front() {
		if now.Sub(front.Value.(*seenKey).at) < w.ttl {
			return
		}
		w.removeLocked(front)
	}
}

func (w *Window) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	w.order.Remove(elem)
	delete(w.index, elem.Value.(*seenKey).key)
}
