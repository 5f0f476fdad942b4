// ABOUTME: Sliding time window of recently submitted message keys
// ABOUTME: Used by the chat session to drop a send repeated within the window

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

// Window is a size-bounded set of keys that expire after a fixed duration.
// Entries are kept in the order they were last marked, oldest at the front,
// so expiry and eviction both pop from the front.
type Window struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	order   *list.List
	span    time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a window that remembers keys for span. maxSize bounds memory;
// values below 1 mean 1.
func New(span time.Duration, maxSize int) *Window {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Window{
		keys:    make(map[string]*list.Element),
		order:   list.New(),
		span:    span,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// CheckAndMark reports whether key was marked within the window, and marks it.
// A true result means the caller should drop the submission.
func (w *Window) CheckAndMark(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.expireLocked(now)

	if elem, ok := w.keys[key]; ok {
		elem.Value.(*entry).seen = now
		w.order.MoveToBack(elem)
		return true
	}

	if w.order.Len() >= w.maxSize {
		w.removeLocked(w.order.Front())
	}
	w.keys[key] = w.order.PushBack(&entry{key: key, seen: now})
	return false
}

// Seen reports whether key was marked within the window without marking it.
func (w *Window) Seen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expireLocked(w.now())
	_, ok := w.keys[key]
	return ok
}

// Forget removes key so the next submission with it goes through.
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if elem, ok := w.keys[key]; ok {
		w.removeLocked(elem)
	}
}

// Len returns the number of live keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expireLocked(w.now())
	return w.order.Len()
}

// expireLocked drops entries older than the window. Must be called with mu held.
func (w *Window) expireLocked(now time.Time) {
	for front := w.order.Front(); front != nil; front = w.order.Front() {
		if now.Sub(front.Value.(*entry).seen) < w.span {
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
	delete(w.keys, elem.Value.(*entry).key)
}
