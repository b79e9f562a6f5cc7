package auth

import "sync"

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// Event is a sign-in state transition.
type Event struct {
	Kind      EventKind
	UserID    string
	SessionID string
}

// Events fans sign-in state transitions out to in-process listeners.
type Events struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

func NewEvents() *Events {
	return &Events{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns an idempotent unsubscribe func.
func (e *Events) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

func (e *Events) Publish(ev Event) {
	e.mu.RLock()
	fns := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
