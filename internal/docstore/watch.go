package docstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// listener is one live subscription. Change signals are coalesced into a
// single pending refresh; a dedicated goroutine re-reads the source and
// delivers the full snapshot, so deliveries of one listener never overlap.
type listener struct {
	key     string
	signal  chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
	once    sync.Once
	refresh func(ctx context.Context, l *listener)
}

func (l *listener) poke() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// active reports whether a fetched snapshot may still be delivered.
func (l *listener) active() bool {
	return !l.closed.Load() && l.ctx.Err() == nil
}

// watchHub routes change notifications to document and collection listeners.
type watchHub struct {
	mu   sync.Mutex
	docs map[string]map[*listener]struct{}
	cols map[string]map[*listener]struct{}
}

func newWatchHub() *watchHub {
	return &watchHub{
		docs: make(map[string]map[*listener]struct{}),
		cols: make(map[string]map[*listener]struct{}),
	}
}

func (h *watchHub) watchDoc(path string, refresh func(ctx context.Context, l *listener)) Unsubscribe {
	return h.add(h.docs, path, refresh)
}

func (h *watchHub) watchCollection(collection string, refresh func(ctx context.Context, l *listener)) Unsubscribe {
	return h.add(h.cols, collection, refresh)
}

func (h *watchHub) add(set map[string]map[*listener]struct{}, key string, refresh func(ctx context.Context, l *listener)) Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	l := &listener{
		key:     key,
		signal:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		refresh: refresh,
	}

	h.mu.Lock()
	if _, ok := set[key]; !ok {
		set[key] = make(map[*listener]struct{})
	}
	set[key][l] = struct{}{}
	h.mu.Unlock()

	// initial snapshot
	l.poke()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.signal:
				l.refresh(ctx, l)
			}
		}
	}()

	return func() {
		l.once.Do(func() {
			l.closed.Store(true)
			cancel()
			h.mu.Lock()
			if listeners, ok := set[key]; ok {
				delete(listeners, l)
				if len(listeners) == 0 {
					delete(set, key)
				}
			}
			h.mu.Unlock()
		})
	}
}

// notify signals listeners of the document at path and of its collection.
func (h *watchHub) notify(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.docs[path] {
		l.poke()
	}
	for l := range h.cols[Parent(path)] {
		l.poke()
	}
}

// notifyAll signals every listener, used after a change feed reconnects.
func (h *watchHub) notifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, listeners := range h.docs {
		for l := range listeners {
			l.poke()
		}
	}
	for _, listeners := range h.cols {
		for l := range listeners {
			l.poke()
		}
	}
}

func (h *watchHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, listeners := range h.docs {
		n += len(listeners)
	}
	for _, listeners := range h.cols {
		n += len(listeners)
	}
	return n
}

func docRefresher(get func(ctx context.Context, path string) (Doc, error), path string, fn DocFunc) func(ctx context.Context, l *listener) {
	return func(ctx context.Context, l *listener) {
		doc, err := get(ctx, path)
		if !l.active() {
			return
		}
		switch {
		case err == nil:
			fn(doc, true, nil)
		case errors.Is(err, ErrNotFound):
			fn(Doc{Path: path, ID: lastSegment(path)}, false, nil)
		default:
			fn(Doc{}, false, err)
		}
	}
}

func queryRefresher(query func(ctx context.Context, collection string, q Query) ([]Doc, error), collection string, q Query, fn QueryFunc) func(ctx context.Context, l *listener) {
	return func(ctx context.Context, l *listener) {
		docs, err := query(ctx, collection, q)
		if !l.active() {
			return
		}
		fn(docs, err)
	}
}
