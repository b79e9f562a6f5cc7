package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// BlobStore keeps objects in the blobs table.
type BlobStore struct {
	db      *sqlx.DB
	baseURL string
}

// NewBlobStore constructs a BlobStore serving URLs under baseURL.
func NewBlobStore(db *sqlx.DB, baseURL string) *BlobStore {
	return &BlobStore{db: db, baseURL: baseURL}
}

func (s *BlobStore) Put(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	p := newObjectPath(prefix, contentType)
	if _, err := s.db.ExecContext(ctx, `INSERT INTO blobs (path, content_type, data) VALUES ($1, $2, $3)`, p, contentType, data); err != nil {
		return "", err
	}
	return p, nil
}

func (s *BlobStore) URL(ctx context.Context, objectPath string) (string, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM blobs WHERE path=$1)`, objectPath); err != nil {
		return "", err
	}
	if !exists {
		return "", ErrObjectNotFound
	}
	return publicURL(s.baseURL, objectPath), nil
}

func (s *BlobStore) Open(ctx context.Context, objectPath string) (Object, error) {
	var row struct {
		Path        string `db:"path"`
		ContentType string `db:"content_type"`
		Data        []byte `db:"data"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT path, content_type, data FROM blobs WHERE path=$1`, objectPath)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, ErrObjectNotFound
	}
	if err != nil {
		return Object{}, err
	}
	return Object{Path: row.Path, ContentType: row.ContentType, Data: row.Data}, nil
}

var _ ObjectStore = (*BlobStore)(nil)
