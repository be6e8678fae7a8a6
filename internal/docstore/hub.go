package docstore

import (
	"context"
	"sync"
)

// Hub fans change notifications out to the watchers of each collection.
type Hub struct {
	mu       sync.Mutex
	next     int
	watchers map[string]map[int]func()
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[int]func())}
}

// Add registers fn for ref. The watcher is removed when cancel is called or
// ctx is done.
func (h *Hub) Add(ctx context.Context, ref Ref, fn func()) (cancel func()) {
	key := ref.String()

	h.mu.Lock()
	h.next++
	id := h.next
	if h.watchers[key] == nil {
		h.watchers[key] = make(map[int]func())
	}
	h.watchers[key][id] = fn
	h.mu.Unlock()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.watchers[key], id)
			if len(h.watchers[key]) == 0 {
				delete(h.watchers, key)
			}
		})
	}

	stop := context.AfterFunc(ctx, remove)
	return func() {
		stop()
		remove()
	}
}

// Notify calls every watcher of the collection named key, outside the lock.
func (h *Hub) Notify(key string) {
	for _, fn := range h.snapshot(key) {
		fn()
	}
}

// NotifyAll calls every registered watcher.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	keys := make([]string, 0, len(h.watchers))
	for k := range h.watchers {
		keys = append(keys, k)
	}
	h.mu.Unlock()

	for _, k := range keys {
		h.Notify(k)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ws := range h.watchers {
		n += len(ws)
	}
	return n
}

func (h *Hub) snapshot(key string) []func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	fns := make([]func(), 0, len(h.watchers[key]))
	for _, fn := range h.watchers[key] {
		fns = append(fns, fn)
	}
	return fns
}
