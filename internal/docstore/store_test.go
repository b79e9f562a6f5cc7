package docstore

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/db"
)

type note struct {
	Owner string `json:"owner"`
	Body  string `json:"body"`
	Rank  int    `json:"rank,omitempty"`
}

func storeBackends(t *testing.T) map[string]Store {
	backends := map[string]Store{"memory": NewMemoryStore()}
	if dsn := os.Getenv("DOCSTORE_TEST_DSN"); dsn != "" {
		database, err := db.Connect(dsn)
		require.NoError(t, err)
		t.Cleanup(func() { database.Close() })
		pg := NewPostgresStore(database)
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		require.NoError(t, pg.Listen(ctx, dsn))
		backends["postgres"] = pg
	}
	return backends
}

// root returns a collection name unique to one test run.
func root() string {
	return "t" + uuid.NewString()[:8]
}

func TestStoreContract(t *testing.T) {
	for name, store := range storeBackends(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, store) })
			t.Run("SetReplaces", func(t *testing.T) { testSetReplaces(t, store) })
			t.Run("MergeKeepsOtherFields", func(t *testing.T) { testMergeKeepsOtherFields(t, store) })
			t.Run("CreateOnce", func(t *testing.T) { testCreateOnce(t, store) })
			t.Run("AppendOrdersByServerTime", func(t *testing.T) { testAppendOrder(t, store) })
			t.Run("QueryFilters", func(t *testing.T) { testQueryFilters(t, store) })
			t.Run("WatchQuery", func(t *testing.T) { testWatchQuery(t, store) })
			t.Run("WatchDoc", func(t *testing.T) { testWatchDoc(t, store) })
			t.Run("InvalidInput", func(t *testing.T) { testInvalidInput(t, store) })
		})
	}
}

func testGetMissing(t *testing.T, store Store) {
	_, err := store.Get(context.Background(), Join(root(), "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func testSetReplaces(t *testing.T, store Store) {
	ctx := context.Background()
	path := Join(root(), "a")
	require.NoError(t, store.Set(ctx, path, note{Owner: "u1", Body: "first", Rank: 3}))
	require.NoError(t, store.Set(ctx, path, note{Owner: "u1", Body: "second"}))

	doc, err := store.Get(ctx, path)
	require.NoError(t, err)
	var got note
	require.NoError(t, doc.DataTo(&got))
	assert.Equal(t, note{Owner: "u1", Body: "second"}, got)
	assert.Equal(t, "a", doc.ID)
}

func testMergeKeepsOtherFields(t *testing.T, store Store) {
	ctx := context.Background()
	path := Join(root(), "index")
	require.NoError(t, store.Merge(ctx, path, map[string]note{"c1": {Body: "hi"}}))
	require.NoError(t, store.Merge(ctx, path, map[string]note{"c2": {Body: "yo"}}))
	require.NoError(t, store.Merge(ctx, path, map[string]note{"c1": {Body: "hello"}}))

	doc, err := store.Get(ctx, path)
	require.NoError(t, err)
	var got map[string]note
	require.NoError(t, doc.DataTo(&got))
	assert.Equal(t, map[string]note{"c1": {Body: "hello"}, "c2": {Body: "yo"}}, got)
}

func testCreateOnce(t *testing.T, store Store) {
	ctx := context.Background()
	path := Join(root(), "once")
	doc, err := store.Create(ctx, path, note{Owner: "u1"})
	require.NoError(t, err)
	assert.False(t, doc.CreateTime.IsZero())

	_, err = store.Create(ctx, path, note{Owner: "u2"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, store.Delete(ctx, path))
	_, err = store.Create(ctx, path, note{Owner: "u3"})
	assert.NoError(t, err)
}

func testAppendOrder(t *testing.T, store Store) {
	ctx := context.Background()
	col := Join(root(), "c", "messages")
	var appended []Doc
	for i := 0; i < 5; i++ {
		doc, err := store.Append(ctx, col, note{Body: string(rune('a' + i))})
		require.NoError(t, err)
		appended = append(appended, doc)
	}

	docs, err := store.Query(ctx, col, Query{OrderBy: CreateTimeField})
	require.NoError(t, err)
	require.Len(t, docs, 5)
	for i := range docs {
		assert.Equal(t, appended[i].ID, docs[i].ID)
		if i > 0 {
			assert.False(t, docs[i].CreateTime.Before(docs[i-1].CreateTime))
		}
	}

	desc, err := store.Query(ctx, col, Query{OrderBy: CreateTimeField, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, appended[4].ID, desc[0].ID)
}

func testQueryFilters(t *testing.T, store Store) {
	ctx := context.Background()
	col := root()
	require.NoError(t, store.Set(ctx, Join(col, "1"), note{Owner: "a", Body: "x"}))
	require.NoError(t, store.Set(ctx, Join(col, "2"), note{Owner: "b", Body: "x"}))
	require.NoError(t, store.Set(ctx, Join(col, "3"), note{Owner: "c", Body: "y"}))
	require.NoError(t, store.Set(ctx, Join(col, "4", "nested", "5"), note{Owner: "a"}))

	docs, err := store.Query(ctx, col, Query{Filters: []Filter{Where("owner", "a")}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "1", docs[0].ID)

	docs, err = store.Query(ctx, col, Query{Filters: []Filter{WhereIn("owner", "a", "b"), Where("body", "x")}})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = store.Query(ctx, col, Query{Filters: []Filter{Where("owner", "zzz")}})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testWatchQuery(t *testing.T, store Store) {
	ctx := context.Background()
	col := Join(root(), "c", "messages")
	emissions := make(chan []Doc, 16)
	unsub := store.WatchQuery(col, Query{OrderBy: CreateTimeField}, func(docs []Doc, err error) {
		assert.NoError(t, err)
		emissions <- docs
	})

	first := waitDocs(t, emissions)
	assert.Empty(t, first)

	_, err := store.Append(ctx, col, note{Body: "one"})
	require.NoError(t, err)
	_, err = store.Append(ctx, col, note{Body: "two"})
	require.NoError(t, err)

	var last []Doc
	require.Eventually(t, func() bool {
		select {
		case last = <-emissions:
		default:
		}
		return len(last) == 2
	}, 2*time.Second, 10*time.Millisecond)

	unsub()
	unsub()
	time.Sleep(50 * time.Millisecond)
	drain(emissions)
	_, err = store.Append(ctx, col, note{Body: "three"})
	require.NoError(t, err)
	select {
	case docs := <-emissions:
		t.Fatalf("unexpected emission after unsubscribe: %d docs", len(docs))
	case <-time.After(100 * time.Millisecond):
	}
}

func testWatchDoc(t *testing.T, store Store) {
	ctx := context.Background()
	path := Join(root(), "watched")
	type snap struct {
		exists bool
		body   string
	}
	emissions := make(chan snap, 16)
	unsub := store.WatchDoc(path, func(doc Doc, exists bool, err error) {
		assert.NoError(t, err)
		s := snap{exists: exists}
		if exists {
			var n note
			assert.NoError(t, json.Unmarshal(doc.Data, &n))
			s.body = n.Body
		}
		emissions <- s
	})
	defer unsub()

	assert.Equal(t, snap{}, waitSnap(t, emissions))

	require.NoError(t, store.Set(ctx, path, note{Body: "v1"}))
	require.Eventually(t, func() bool {
		select {
		case s := <-emissions:
			return s.exists && s.body == "v1"
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func testInvalidInput(t *testing.T, store Store) {
	ctx := context.Background()
	_, err := store.Get(ctx, "users")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, store.Set(ctx, "users//x", note{}), ErrInvalidPath)
	assert.ErrorIs(t, store.Set(ctx, Join(root(), "x"), []string{"not", "object"}), ErrNotObject)
	_, err = store.Append(ctx, "users/u1", note{})
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Query(ctx, root(), Query{Filters: []Filter{Where("bad field'", "x")}})
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestMemoryStoreClockIsStrictlyIncreasing(t *testing.T) {
	store := NewMemoryStore()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return fixed })

	a, err := store.Append(context.Background(), "c/x/messages", note{Body: "a"})
	require.NoError(t, err)
	b, err := store.Append(context.Background(), "c/x/messages", note{Body: "b"})
	require.NoError(t, err)
	assert.True(t, b.CreateTime.After(a.CreateTime))
}

func TestMemoryStoreUnsubscribeInsideCallback(t *testing.T) {
	store := NewMemoryStore()
	done := make(chan struct{})
	ready := make(chan Unsubscribe, 1)
	unsub := store.WatchQuery("rooms", Query{}, func(docs []Doc, err error) {
		(<-ready)()
		close(done)
	})
	ready <- unsub
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
	require.Eventually(t, func() bool { return store.Listeners() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBuildQuery(t *testing.T) {
	query, args := buildQuery("friend_requests", Query{
		Filters: []Filter{Where("receiver", "u2"), WhereIn("status", "waiting", "accepted")},
		OrderBy: "sentAt",
	})
	assert.Equal(t, `SELECT path, doc_id, data, create_time, update_time FROM documents WHERE collection=$1 AND data->>'receiver' = $2 AND data->>'status' = ANY($3) ORDER BY data->>'sentAt' ASC, seq ASC`, query)
	assert.Len(t, args, 3)
}

func waitDocs(t *testing.T, ch <-chan []Doc) []Doc {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
	}
	return nil
}

func waitSnap[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
	}
	var zero T
	return zero
}

func drain[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
