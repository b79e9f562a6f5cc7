package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"chat-sync/internal/logger"
)

// ChangeChannel is the NOTIFY channel the documents trigger publishes on.
const ChangeChannel = "docstore_changes"

type docRow struct {
	Path       string    `db:"path"`
	DocID      string    `db:"doc_id"`
	Data       []byte    `db:"data"`
	CreateTime time.Time `db:"create_time"`
	UpdateTime time.Time `db:"update_time"`
}

func (r docRow) doc() Doc {
	return Doc{
		Path:       r.Path,
		ID:         r.DocID,
		Data:       r.Data,
		CreateTime: r.CreateTime.UTC(),
		UpdateTime: r.UpdateTime.UTC(),
	}
}

const docColumns = `path, doc_id, data, create_time, update_time`

// PostgresStore keeps documents in one JSONB table. Server time comes from
// clock_timestamp(); changes from any process reach watchers through
// LISTEN/NOTIFY.
type PostgresStore struct {
	db  *sqlx.DB
	hub *watchHub
}

// NewPostgresStore wraps an already migrated database.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, hub: newWatchHub()}
}

// Listen consumes the change feed until ctx is cancelled. Without it only
// writes made through this process wake local watchers.
func (s *PostgresStore) Listen(ctx context.Context, dsn string) error {
	l := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Log.Warn("docstore_listener_event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := l.Listen(ChangeChannel); err != nil {
		_ = l.Close()
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}

	go func() {
		defer l.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-l.Notify:
				if n == nil {
					// reconnected: notifications may have been missed
					s.hub.notifyAll()
					continue
				}
				s.hub.notify(n.Extra)
			case <-time.After(90 * time.Second):
				go func() { _ = l.Ping() }()
			}
		}
	}()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, path string) (Doc, error) {
	if !validDocPath(path) {
		return Doc{}, ErrInvalidPath
	}
	var row docRow
	err := s.db.GetContext(ctx, &row, `SELECT `+docColumns+` FROM documents WHERE path=$1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, err
	}
	return row.doc(), nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, data any) error {
	return s.upsert(ctx, path, data, `data = EXCLUDED.data`)
}

func (s *PostgresStore) Merge(ctx context.Context, path string, data any) error {
	return s.upsert(ctx, path, data, `data = documents.data || EXCLUDED.data`)
}

func (s *PostgresStore) upsert(ctx context.Context, path string, data any, assign string) error {
	if !validDocPath(path) {
		return ErrInvalidPath
	}
	raw, err := encodeObject(data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO documents (path, collection, doc_id, data)
        VALUES ($1, $2, $3, $4::jsonb)
        ON CONFLICT (path) DO UPDATE SET `+assign+`, update_time = clock_timestamp()`,
		path, Parent(path), lastSegment(path), string(raw))
	if err != nil {
		return err
	}
	s.hub.notify(path)
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, path string, data any) (Doc, error) {
	if !validDocPath(path) {
		return Doc{}, ErrInvalidPath
	}
	raw, err := encodeObject(data)
	if err != nil {
		return Doc{}, err
	}
	var row docRow
	err = s.db.GetContext(ctx, &row, `INSERT INTO documents (path, collection, doc_id, data)
        VALUES ($1, $2, $3, $4::jsonb)
        ON CONFLICT (path) DO NOTHING
        RETURNING `+docColumns, path, Parent(path), lastSegment(path), string(raw))
	if errors.Is(err, sql.ErrNoRows) {
		return Doc{}, ErrAlreadyExists
	}
	if err != nil {
		return Doc{}, err
	}
	s.hub.notify(path)
	return row.doc(), nil
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	if !validDocPath(path) {
		return ErrInvalidPath
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path=$1`, path)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.hub.notify(path)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, collection string, data any) (Doc, error) {
	if !validCollection(collection) {
		return Doc{}, ErrInvalidPath
	}
	return s.Create(ctx, Join(collection, uuid.NewString()), data)
}

func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	if !validCollection(collection) {
		return nil, ErrInvalidPath
	}
	if err := q.validate(); err != nil {
		return nil, err
	}

	query, args := buildQuery(collection, q)
	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	docs := make([]Doc, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.doc())
	}
	return docs, nil
}

// buildQuery renders q as SQL. Field names are interpolated only after
// validate has restricted them to identifiers.
func buildQuery(collection string, q Query) (string, []any) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT ` + docColumns + ` FROM documents WHERE collection=$1`)
	for _, f := range q.Filters {
		if f.Op == OpIn {
			args = append(args, pq.Array(f.Values))
			fmt.Fprintf(&b, ` AND data->>'%s' = ANY($%d)`, f.Field, len(args))
			continue
		}
		var value string
		if len(f.Values) > 0 {
			value = f.Values[0]
		}
		args = append(args, value)
		fmt.Fprintf(&b, ` AND data->>'%s' = $%d`, f.Field, len(args))
	}

	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	switch q.OrderBy {
	case "", CreateTimeField:
		fmt.Fprintf(&b, ` ORDER BY create_time %s, seq %s`, dir, dir)
	default:
		fmt.Fprintf(&b, ` ORDER BY data->>'%s' %s, seq %s`, q.OrderBy, dir, dir)
	}
	return b.String(), args
}

func (s *PostgresStore) WatchDoc(path string, fn DocFunc) Unsubscribe {
	return s.hub.watchDoc(path, docRefresher(s.Get, path, fn))
}

func (s *PostgresStore) WatchQuery(collection string, q Query, fn QueryFunc) Unsubscribe {
	return s.hub.watchCollection(collection, queryRefresher(s.Query, collection, q, fn))
}

var _ Store = (*PostgresStore)(nil)
