package repositories

import (
	"context"
	"errors"
	"fmt"

	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
)

// SummaryRepository manages the per-user chat index. Each conversation is a
// separate top-level field so concurrent writers never clobber each other's
// entries.
type SummaryRepository interface {
	InitIndex(ctx context.Context, userID string) error
	MergeSummary(ctx context.Context, userID string, summary models.ChatSummary) error
	GetSummaries(ctx context.Context, userID string) (map[string]models.ChatSummary, error)
	WatchSummaries(userID string, fn func(map[string]models.ChatSummary, error)) docstore.Unsubscribe
}

type SummaryRepo struct {
	store docstore.Store
}

func NewSummaryRepo(store docstore.Store) *SummaryRepo {
	return &SummaryRepo{store: store}
}

func indexPath(userID string) string {
	return docstore.Join("userchats", userID)
}

// InitIndex makes sure the user's index document exists.
func (r *SummaryRepo) InitIndex(ctx context.Context, userID string) error {
	return r.store.Merge(ctx, indexPath(userID), map[string]any{})
}

func (r *SummaryRepo) MergeSummary(ctx context.Context, userID string, summary models.ChatSummary) error {
	if err := r.store.Merge(ctx, indexPath(userID), map[string]models.ChatSummary{summary.ConversationID: summary}); err != nil {
		return fmt.Errorf("merge summary %s into %s: %w", summary.ConversationID, userID, err)
	}
	return nil
}

// GetSummaries returns the index keyed by conversation id. A missing index
// is empty.
func (r *SummaryRepo) GetSummaries(ctx context.Context, userID string) (map[string]models.ChatSummary, error) {
	doc, err := r.store.Get(ctx, indexPath(userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return map[string]models.ChatSummary{}, nil
	}
	if err != nil {
		return nil, err
	}
	return summariesFromDoc(doc)
}

func (r *SummaryRepo) WatchSummaries(userID string, fn func(map[string]models.ChatSummary, error)) docstore.Unsubscribe {
	return r.store.WatchDoc(indexPath(userID), func(doc docstore.Doc, exists bool, err error) {
		switch {
		case err != nil:
			fn(nil, err)
		case !exists:
			fn(map[string]models.ChatSummary{}, nil)
		default:
			fn(summariesFromDoc(doc))
		}
	})
}

func summariesFromDoc(doc docstore.Doc) (map[string]models.ChatSummary, error) {
	summaries := map[string]models.ChatSummary{}
	if err := doc.DataTo(&summaries); err != nil {
		return nil, fmt.Errorf("decode chat index %s: %w", doc.ID, err)
	}
	for id, s := range summaries {
		if s.ConversationID == "" {
			s.ConversationID = id
			summaries[id] = s
		}
	}
	return summaries, nil
}

var _ SummaryRepository = (*SummaryRepo)(nil)
