package engine

import (
	"sync"

	"github.com/roach88/triplesync/internal/rdf"
)

// Origin says where a change came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Change is delivered to subscribers after every apply that changed at
// least one register.
type Change struct {
	Origin  Origin
	Changed []rdf.Triple
	// Operation is set for local mutations.
	Operation *rdf.Operation
}

// Listener receives changes synchronously on the mutating goroutine.
type Listener func(Change)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id  uint64
	set *listenerSet
}

// Unsubscribe removes exactly this listener. It is safe to call more than
// once and from inside a listener.
func (s Subscription) Unsubscribe() {
	if s.set != nil {
		s.set.remove(s.id)
	}
}

type listenerSet struct {
	mu    sync.Mutex
	next  uint64
	order []uint64
	fns   map[uint64]Listener
}

func newListenerSet() *listenerSet {
	return &listenerSet{fns: make(map[uint64]Listener)}
}

func (l *listenerSet) add(fn Listener) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.fns[l.next] = fn
	l.order = append(l.order, l.next)
	return Subscription{id: l.next, set: l}
}

func (l *listenerSet) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.fns[id]; !ok {
		return
	}
	delete(l.fns, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
}

// notify calls listeners in subscription order. The id list is snapshotted
// and each id is looked up again before its call, so a listener removed
// mid-notification is not called and one added mid-notification waits for
// the next change.
func (l *listenerSet) notify(c Change) {
	l.mu.Lock()
	ids := append([]uint64(nil), l.order...)
	l.mu.Unlock()

	for _, id := range ids {
		l.mu.Lock()
		fn, ok := l.fns[id]
		l.mu.Unlock()
		if ok {
			fn(c)
		}
	}
}

func (l *listenerSet) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
