// Package storage holds uploaded binary objects (message images, avatars)
// and turns their opaque storage paths into fetchable URLs.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrEmptyObject    = errors.New("empty object")
	ErrNotImage       = errors.New("object is not an image")
)

// Object is a stored payload.
type Object struct {
	Path        string
	ContentType string
	Data        []byte
}

// ObjectStore is the object storage collaborator.
type ObjectStore interface {
	// Put stores data under a new path inside prefix and returns that path.
	Put(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
	// URL resolves a storage path to a fetchable URL.
	URL(ctx context.Context, objectPath string) (string, error)
	Open(ctx context.Context, objectPath string) (Object, error)
}

// DetectImage sniffs the payload and returns its content type, rejecting
// anything that is not an image.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", ErrNotImage
	}
	return mt.String(), nil
}

func newObjectPath(prefix, contentType string) string {
	name := uuid.NewString()
	if mt := mimetype.Lookup(contentType); mt != nil {
		name += mt.Extension()
	}
	return path.Join(prefix, name)
}

func publicURL(baseURL, objectPath string) string {
	return strings.TrimRight(baseURL, "/") + "/media/" + objectPath
}
