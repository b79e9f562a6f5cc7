// Package chat implements the message send pipeline and the live message
// channel of a conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chat-sync/internal/identity"
	"chat-sync/internal/logger"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/repositories"
	"chat-sync/internal/storage"
)

var ErrNotParticipant = errors.New("sender is not a participant")

const fanoutLimit = 16

var tracer = otel.Tracer("chat-sync/chat")

// AvatarResolver resolves a stored avatar reference; avatar.Resolver
// satisfies it.
type AvatarResolver interface {
	Resolve(ctx context.Context, ref string) string
}

type SendRequest struct {
	ConversationID string
	SenderID       string
	// PeerID allows the first message of a two-party conversation to create
	// its record.
	PeerID string
	Text   string
	Image  []byte
}

type FanoutFailure struct {
	UserID string
	Err    error
}

type SendResult struct {
	Sent           bool
	Message        models.Message
	FanoutFailures []FanoutFailure
}

// SendError reports the pipeline stage that failed.
type SendError struct {
	Stage string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed at %s: %v", e.Stage, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

type Sender struct {
	chats     repositories.ChatRepository
	messages  repositories.MessageRepository
	summaries repositories.SummaryRepository
	users     repositories.UserRepository
	objects   storage.ObjectStore
	avatars   AvatarResolver
}

func NewSender(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	summaries repositories.SummaryRepository,
	users repositories.UserRepository,
	objects storage.ObjectStore,
	avatars AvatarResolver,
) *Sender {
	return &Sender{
		chats:     chats,
		messages:  messages,
		summaries: summaries,
		users:     users,
		objects:   objects,
		avatars:   avatars,
	}
}

// Outcome is the completion of a background send.
type Outcome struct {
	Result SendResult
	Err    error
}

// SendDraft clears the draft before returning and runs the send in the
// background; the outcome is delivered on the returned channel. A failed
// send does not restore the draft.
func (s *Sender) SendDraft(ctx context.Context, conversationID, senderID, peerID string, draft *Draft) <-chan Outcome {
	text, image := draft.Take()
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, err := s.Send(ctx, SendRequest{
			ConversationID: conversationID,
			SenderID:       senderID,
			PeerID:         peerID,
			Text:           text,
			Image:          image,
		})
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// Send appends a message and fans its summary out to every participant's
// chat index. A request without content or conversation is a no-op.
// Fan-out failures do not fail the send; they are returned in the result.
func (s *Sender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	hasText := strings.TrimSpace(req.Text) != ""
	if req.ConversationID == "" || (!hasText && len(req.Image) == 0) {
		return SendResult{}, nil
	}
	text := req.Text
	if !hasText {
		text = ""
	}

	ctx, span := tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.String("sender.id", req.SenderID),
		attribute.Bool("message.has_image", len(req.Image) > 0),
	))
	defer span.End()

	fail := func(stage string, err error) (SendResult, error) {
		observability.SendFailures.WithLabelValues(stage).Inc()
		logger.Log.Warn("send_failed",
			zap.String("stage", stage),
			zap.String("conversation_id", req.ConversationID),
			zap.String("sender_id", req.SenderID),
			zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		return SendResult{}, &SendError{Stage: stage, Err: err}
	}

	var contentType string
	if len(req.Image) > 0 {
		var err error
		contentType, err = storage.DetectImage(req.Image)
		if err != nil {
			return fail("image", err)
		}
	}

	// Membership is checked before the upload so a rejected sender leaves
	// no object behind.
	chat, err := s.conversation(ctx, req)
	if err != nil {
		return fail("conversation", err)
	}

	var imageRef string
	if contentType != "" {
		imageRef, err = s.objects.Put(ctx, "images/"+req.ConversationID, req.Image, contentType)
		if err != nil {
			return fail("upload", err)
		}
	}

	sender, err := s.users.GetUser(ctx, req.SenderID)
	if err != nil {
		return fail("profile", err)
	}
	senderAvatar := s.avatars.Resolve(ctx, sender.Avatar)

	msg, err := s.messages.AppendMessage(ctx, models.Message{
		ConversationID: chat.ID,
		Text:           text,
		ImageRef:       imageRef,
		SenderID:       sender.ID,
		SenderAvatar:   senderAvatar,
	})
	if err != nil {
		return fail("append", err)
	}
	observability.MessagesSent.WithLabelValues(string(chat.Kind)).Inc()

	failures := s.fanout(ctx, chat, msg, PreviewText(msg.Text, msg.ImageRef))
	if len(failures) > 0 {
		span.SetAttributes(attribute.Int("fanout.failures", len(failures)))
	}

	observability.PublishEvent(ctx, "message.sent", map[string]any{
		"conversation_id": chat.ID,
		"message_id":      msg.ID,
		"sender_id":       msg.SenderID,
		"participants":    chat.Participants,
	})
	return SendResult{Sent: true, Message: msg, FanoutFailures: failures}, nil
}

// conversation loads the record, creating a missing two-party record when
// the id is the derived key of sender and peer.
func (s *Sender) conversation(ctx context.Context, req SendRequest) (models.Conversation, error) {
	chat, err := s.chats.GetChat(ctx, req.ConversationID)
	if errors.Is(err, repositories.ErrChatNotFound) && req.PeerID != "" &&
		identity.DeriveConversationID(req.SenderID, req.PeerID) == req.ConversationID {
		chat, err = s.chats.CreateOrGetDirect(ctx, req.SenderID, req.PeerID)
		if err == nil {
			logger.Log.Info("conversation_created_on_first_message", zap.String("conversation_id", chat.ID))
		}
	}
	if err != nil {
		return models.Conversation{}, err
	}
	if !chat.HasParticipant(req.SenderID) {
		return models.Conversation{}, ErrNotParticipant
	}
	return chat, nil
}

func (s *Sender) fanout(ctx context.Context, chat models.Conversation, msg models.Message, preview string) []FanoutFailure {
	var (
		mu       sync.Mutex
		failures []FanoutFailure
		g        errgroup.Group
	)
	g.SetLimit(fanoutLimit)

	sentAt := msg.SentAt
	for _, userID := range chat.Participants {
		userID := userID
		summary := models.ChatSummary{
			ConversationID: chat.ID,
			IsGroup:        chat.IsGroup(),
			LastMessage:    preview,
			UpdatedAt:      &sentAt,
		}
		if chat.IsGroup() {
			summary.Name = chat.Name
			summary.AvatarRef = chat.AvatarRef
		} else {
			summary.PeerID = identity.PeerOf(chat.Participants, userID)
		}

		g.Go(func() error {
			if err := s.summaries.MergeSummary(ctx, userID, summary); err != nil {
				observability.FanoutWrites.WithLabelValues("failed").Inc()
				mu.Lock()
				failures = append(failures, FanoutFailure{UserID: userID, Err: err})
				mu.Unlock()
				return nil
			}
			observability.FanoutWrites.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		ids := make([]string, 0, len(failures))
		for _, f := range failures {
			ids = append(ids, f.UserID)
		}
		logger.Log.Warn("fanout_partial_failure",
			zap.String("conversation_id", chat.ID),
			zap.String("message_id", msg.ID),
			zap.Strings("user_ids", ids))
	}
	return failures
}
