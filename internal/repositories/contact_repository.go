package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
)

// ContactRepository manages the contacts/{uid}/added sets.
type ContactRepository interface {
	AddContact(ctx context.Context, ownerID, peerID string) error
	IsContact(ctx context.Context, ownerID, peerID string) (bool, error)
	ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error)
	WatchContacts(ownerID string, fn func([]models.Contact, error)) docstore.Unsubscribe
}

type ContactRepo struct {
	store docstore.Store
}

func NewContactRepo(store docstore.Store) *ContactRepo {
	return &ContactRepo{store: store}
}

func contactsCollection(ownerID string) string {
	return docstore.Join("contacts", ownerID, "added")
}

// AddContact is idempotent.
func (r *ContactRepo) AddContact(ctx context.Context, ownerID, peerID string) error {
	err := r.store.Merge(ctx, docstore.Join(contactsCollection(ownerID), peerID), models.Contact{
		UserID:  peerID,
		AddedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("add contact %s for %s: %w", peerID, ownerID, err)
	}
	return nil
}

func (r *ContactRepo) IsContact(ctx context.Context, ownerID, peerID string) (bool, error) {
	_, err := r.store.Get(ctx, docstore.Join(contactsCollection(ownerID), peerID))
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *ContactRepo) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	docs, err := r.store.Query(ctx, contactsCollection(ownerID), docstore.Query{})
	if err != nil {
		return nil, err
	}
	return contactsFromDocs(docs)
}

func (r *ContactRepo) WatchContacts(ownerID string, fn func([]models.Contact, error)) docstore.Unsubscribe {
	return r.store.WatchQuery(contactsCollection(ownerID), docstore.Query{}, func(docs []docstore.Doc, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(contactsFromDocs(docs))
	})
}

func contactsFromDocs(docs []docstore.Doc) ([]models.Contact, error) {
	contacts := make([]models.Contact, 0, len(docs))
	for _, doc := range docs {
		var c models.Contact
		if err := doc.DataTo(&c); err != nil {
			return nil, fmt.Errorf("decode contact %s: %w", doc.ID, err)
		}
		c.UserID = doc.ID
		contacts = append(contacts, c)
	}
	return contacts, nil
}

var _ ContactRepository = (*ContactRepo)(nil)
