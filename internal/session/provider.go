// Package session provides the current authenticated identity and
// notifies subscribers whenever it changes.
package session

import (
	"sync"

	"github.com/julianstephens/habitflow/internal/models"
)

// Provider reports the current identity. Subscribe calls fn with the
// current identity immediately and again after every change; nil means
// signed out.
type Provider interface {
	Current() *models.Identity
	Subscribe(fn func(*models.Identity)) (unsubscribe func())
}

// listeners holds the current identity and its subscribers. notify is
// held across each fan-out so subscribers see changes in commit order;
// subscribers must not change the identity from their callback.
type listeners struct {
	notify  sync.Mutex
	mu      sync.Mutex
	current *models.Identity
	next    int
	fns     map[int]func(*models.Identity)
}

func copyIdentity(id *models.Identity) *models.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func (l *listeners) Current() *models.Identity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyIdentity(l.current)
}

func (l *listeners) Subscribe(fn func(*models.Identity)) func() {
	l.notify.Lock()
	defer l.notify.Unlock()

	l.mu.Lock()
	if l.fns == nil {
		l.fns = make(map[int]func(*models.Identity))
	}
	l.next++
	key := l.next
	l.fns[key] = fn
	current := copyIdentity(l.current)
	l.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, key)
			l.mu.Unlock()
		})
	}
}

// set replaces the identity and notifies subscribers outside the state
// lock.
func (l *listeners) set(id *models.Identity) {
	l.notify.Lock()
	defer l.notify.Unlock()

	l.mu.Lock()
	l.current = copyIdentity(id)
	fns := make([]func(*models.Identity), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(copyIdentity(id))
	}
}

// Static is a Provider with a fixed identity, for tools and tests.
type Static struct {
	listeners
}

func NewStatic(id *models.Identity) *Static {
	s := &Static{}
	s.current = copyIdentity(id)
	return s
}

// Set replaces the identity and notifies subscribers.
func (s *Static) Set(id *models.Identity) { s.set(id) }
