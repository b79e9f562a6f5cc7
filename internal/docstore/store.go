// Package docstore defines the realtime document store the chat core runs
// on: point reads and writes by path, set-with-merge, appends with a
// server-assigned timestamp, collection queries and live subscriptions.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrInvalidPath   = errors.New("invalid document path")
	ErrNotObject     = errors.New("document data must be a JSON object")
	ErrInvalidField  = errors.New("invalid query field")
)

// Doc is a snapshot of one document.
type Doc struct {
	Path       string
	ID         string
	Data       json.RawMessage
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo decodes the document body into v.
func (d Doc) DataTo(v any) error {
	return json.Unmarshal(d.Data, v)
}

// DocFunc receives every snapshot of a watched document. exists is false
// when the document is absent.
type DocFunc func(doc Doc, exists bool, err error)

// QueryFunc receives the complete result of a watched query on every change.
type QueryFunc func(docs []Doc, err error)

// Unsubscribe stops a live subscription. It is idempotent.
type Unsubscribe func()

// Store is implemented by every document store backend.
type Store interface {
	Get(ctx context.Context, path string) (Doc, error)
	// Set replaces the document body.
	Set(ctx context.Context, path string, data any) error
	// Merge overwrites only the top-level fields present in data, creating
	// the document when absent.
	Merge(ctx context.Context, path string, data any) error
	// Create writes the document only if it does not exist yet.
	Create(ctx context.Context, path string, data any) (Doc, error)
	Delete(ctx context.Context, path string) error
	// Append adds a document with a generated id to the collection. Its
	// CreateTime is assigned by the store and strictly orders the collection.
	Append(ctx context.Context, collection string, data any) (Doc, error)
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
	WatchDoc(path string, fn DocFunc) Unsubscribe
	WatchQuery(collection string, q Query, fn QueryFunc) Unsubscribe
}

func encodeObject(data any) (json.RawMessage, error) {
	var raw []byte
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	return trimmed, nil
}
