package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memDoc struct {
	fields  map[string]json.RawMessage
	created time.Time
	updated time.Time
	seq     int64
}

// MemoryStore is an in-process Store used by tests and single-node setups.
// Its clock is strictly increasing, so Append order equals create-time order.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*memDoc
	seq   int64
	last  time.Time
	clock func() time.Time
	hub   *watchHub
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*memDoc),
		clock: time.Now,
		hub:   newWatchHub(),
	}
}

// SetClock replaces the time source; used by tests.
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Listeners reports the number of live subscriptions.
func (s *MemoryStore) Listeners() int {
	return s.hub.count()
}

// now must be called with s.mu held.
func (s *MemoryStore) now() time.Time {
	t := s.clock().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *MemoryStore) snapshot(path string, d *memDoc) Doc {
	data, _ := json.Marshal(d.fields)
	return Doc{
		Path:       path,
		ID:         lastSegment(path),
		Data:       data,
		CreateTime: d.created,
		UpdateTime: d.updated,
	}
}

func decodeFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Doc, error) {
	if !validDocPath(path) {
		return Doc{}, ErrInvalidPath
	}
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[path]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return s.snapshot(path, d), nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, data any) error {
	return s.write(ctx, path, data, false)
}

func (s *MemoryStore) Merge(ctx context.Context, path string, data any) error {
	return s.write(ctx, path, data, true)
}

func (s *MemoryStore) write(ctx context.Context, path string, data any, merge bool) error {
	if !validDocPath(path) {
		return ErrInvalidPath
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeObject(data)
	if err != nil {
		return err
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	now := s.now()
	d, ok := s.docs[path]
	if !ok {
		s.seq++
		d = &memDoc{fields: map[string]json.RawMessage{}, created: now, seq: s.seq}
		s.docs[path] = d
	}
	if !merge {
		d.fields = map[string]json.RawMessage{}
	}
	for k, v := range fields {
		d.fields[k] = v
	}
	d.updated = now
	s.mu.Unlock()

	s.hub.notify(path)
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, path string, data any) (Doc, error) {
	if !validDocPath(path) {
		return Doc{}, ErrInvalidPath
	}
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	raw, err := encodeObject(data)
	if err != nil {
		return Doc{}, err
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Doc{}, err
	}

	s.mu.Lock()
	if _, ok := s.docs[path]; ok {
		s.mu.Unlock()
		return Doc{}, ErrAlreadyExists
	}
	now := s.now()
	s.seq++
	d := &memDoc{fields: fields, created: now, updated: now, seq: s.seq}
	s.docs[path] = d
	doc := s.snapshot(path, d)
	s.mu.Unlock()

	s.hub.notify(path)
	return doc, nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if !validDocPath(path) {
		return ErrInvalidPath
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	_, existed := s.docs[path]
	delete(s.docs, path)
	s.mu.Unlock()

	if existed {
		s.hub.notify(path)
	}
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, collection string, data any) (Doc, error) {
	if !validCollection(collection) {
		return Doc{}, ErrInvalidPath
	}
	return s.Create(ctx, Join(collection, uuid.NewString()), data)
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	if !validCollection(collection) {
		return nil, ErrInvalidPath
	}
	if err := q.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	type match struct {
		path string
		doc  *memDoc
	}
	var matches []match
	for path, d := range s.docs {
		if Parent(path) != collection {
			continue
		}
		ok := true
		for _, f := range q.Filters {
			if !f.matches(d.fields) {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, match{path: path, doc: d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].doc, matches[j].doc
		c := 0
		switch q.OrderBy {
		case "", CreateTimeField:
			c = a.created.Compare(b.created)
		default:
			c = compareRaw(a.fields[q.OrderBy], b.fields[q.OrderBy])
		}
		if c == 0 {
			c = compareInt(a.seq, b.seq)
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	docs := make([]Doc, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, s.snapshot(m.path, m.doc))
	}
	s.mu.RUnlock()
	return docs, nil
}

func (s *MemoryStore) WatchDoc(path string, fn DocFunc) Unsubscribe {
	return s.hub.watchDoc(path, docRefresher(s.Get, path, fn))
}

func (s *MemoryStore) WatchQuery(collection string, q Query, fn QueryFunc) Unsubscribe {
	return s.hub.watchCollection(collection, queryRefresher(s.Query, collection, q, fn))
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

var _ Store = (*MemoryStore)(nil)
