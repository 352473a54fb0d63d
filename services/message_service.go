package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/projection"
	"chat-relay/repositories"
)

const searchLimit = 50

type IMessageService interface {
	Send(ctx context.Context, senderID, receiverID, body string) (domain.Message, error)
	GetConversation(ctx context.Context, viewerID, otherUserID string) error
	MarkRead(ctx context.Context, messageID uint64, requesterID string) (domain.Message, error)
	MarkUnread(ctx context.Context, messageID uint64, requesterID string) (domain.Message, error)
	MarkAllRead(ctx context.Context, requesterID, otherUserID string) (int, error)
	DeleteForMe(ctx context.Context, messageID uint64, requesterID string) (domain.Message, error)
	DeleteForAll(ctx context.Context, messageID uint64, requesterID string) (domain.Message, error)
	Search(ctx context.Context, requesterID, query string) ([]domain.Message, error)
}

// MessageService is the state machine over the message log: creation,
// read/unread, per-side and both-side soft deletion. Every mutation is a
// single repository transaction with the access predicate evaluated
// against the state being written, and every successful mutation fans out
// a granular event plus a projection refresh for both participants.
type MessageService struct {
	messages  repositories.IMessageRepository
	users     repositories.IUserRepository
	index     repositories.ISearchIndex
	projector *projection.Projector
	fanout    contract.IFanout
	moderator *moderation.Moderator
	log       *slog.Logger
}

func NewMessageService(
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	index repositories.ISearchIndex,
	projector *projection.Projector,
	fanout contract.IFanout,
	moderator *moderation.Moderator,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		messages:  messages,
		users:     users,
		index:     index,
		projector: projector,
		fanout:    fanout,
		moderator: moderator,
		log:       log,
	}
}

// Send validates the receiver and the body, sanitizes the body, persists
// the message unread with both delete flags clear, and notifies the
// receiver. Self-messaging is allowed.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, body string) (domain.Message, error) {
	if body == "" {
		return domain.Message{}, errors.ErrEmptyBody
	}
	exists, err := s.users.Exists(receiverID)
	if err != nil {
		return domain.Message{}, err
	}
	if !exists {
		return domain.Message{}, fmt.Errorf("receiver %s: %w", receiverID, errors.ErrNotFound)
	}

	if s.moderator != nil {
		body = s.moderator.Sanitize(body)
	}

	msg, err := s.messages.Create(senderID, receiverID, body, time.Now().UTC())
	if err != nil {
		return domain.Message{}, err
	}

	// Search is auxiliary: an indexing failure must not fail the send.
	if s.index != nil {
		if err := s.index.Index(msg); err != nil {
			s.log.Warn("message not indexed", "message_id", msg.ID, "error", err)
		}
	}

	s.fanout.Emit(ctx, event.MessageReceived{Message: msg})
	s.fanout.RefreshConversation(ctx, senderID, receiverID)
	return msg, nil
}

// GetConversation re-pushes both participants' views of the conversation.
// The requester receives their own view through their channel.
func (s *MessageService) GetConversation(ctx context.Context, viewerID, otherUserID string) error {
	exists, err := s.users.Exists(otherUserID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("user %s: %w", otherUserID, errors.ErrNotFound)
	}
	s.fanout.RefreshConversation(ctx, viewerID, otherUserID)
	return nil
}

// MarkRead flips a received message to read. Only the receiver may do
// this, and never for their own outgoing messages, which also rules out
// self-messages. Marking an already-read message succeeds unchanged.
func (s *MessageService) MarkRead(ctx context.Context, messageID uint64, requesterID string) (domain.Message, error) {
	msg, err := s.messages.Update(messageID, func(m *domain.Message) error {
		if err := readAccess(*m, requesterID); err != nil {
			return err
		}
		m.Read = true
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	s.fanout.Emit(ctx, event.MessageRead{MessageID: msg.ID, SenderID: msg.SenderID, ReadBy: requesterID})
	s.fanout.RefreshConversation(ctx, msg.SenderID, msg.ReceiverID)
	return msg, nil
}

// MarkUnread is the inverse flip, under the same access rule.
func (s *MessageService) MarkUnread(ctx context.Context, messageID uint64, requesterID string) (domain.Message, error) {
	msg, err := s.messages.Update(messageID, func(m *domain.Message) error {
		if err := readAccess(*m, requesterID); err != nil {
			return err
		}
		m.Read = false
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	s.fanout.Emit(ctx, event.MessageUnread{MessageID: msg.ID, SenderID: msg.SenderID, UnreadBy: requesterID})
	s.fanout.RefreshConversation(ctx, msg.SenderID, msg.ReceiverID)
	return msg, nil
}

// MarkAllRead bulk-reads every unread message from otherUserID to the
// requester and returns the number updated. Zero is a success. The bulk
// flip emits no per-message events; both views are refreshed instead.
func (s *MessageService) MarkAllRead(ctx context.Context, requesterID, otherUserID string) (int, error) {
	count, err := s.messages.MarkAllRead(otherUserID, requesterID)
	if err != nil {
		return 0, err
	}
	s.fanout.RefreshConversation(ctx, otherUserID, requesterID)
	return count, nil
}

// DeleteForMe hides the message from the requester's side only. The
// requester must be a participant. For a self-message both role checks
// match, so both flags are set and the message disappears from the only
// existing view. Already-hidden is a no-op success.
func (s *MessageService) DeleteForMe(ctx context.Context, messageID uint64, requesterID string) (domain.Message, error) {
	msg, err := s.messages.Update(messageID, func(m *domain.Message) error {
		if !m.Involves(requesterID) {
			return fmt.Errorf("message %d: %w", m.ID, errors.ErrForbidden)
		}
		if m.SenderID == requesterID {
			m.DeletedBySender = true
		}
		if m.ReceiverID == requesterID {
			m.DeletedByReceiver = true
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	s.fanout.Emit(ctx, event.MessageDeleted{MessageID: msg.ID, Targets: []string{requesterID}})
	s.fanout.RefreshConversation(ctx, msg.SenderID, msg.ReceiverID)
	return msg, nil
}

// DeleteForAll hides the message from both sides. Only the sender may do
// this; the receiver gets Forbidden. Both flags are set unconditionally.
func (s *MessageService) DeleteForAll(ctx context.Context, messageID uint64, requesterID string) (domain.Message, error) {
	msg, err := s.messages.Update(messageID, func(m *domain.Message) error {
		if m.SenderID != requesterID {
			return fmt.Errorf("message %d: %w", m.ID, errors.ErrForbidden)
		}
		m.DeletedBySender = true
		m.DeletedByReceiver = true
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}

	targets := []string{msg.SenderID}
	if msg.ReceiverID != msg.SenderID {
		targets = append(targets, msg.ReceiverID)
	}
	s.fanout.Emit(ctx, event.MessageDeleted{MessageID: msg.ID, Targets: targets})
	s.fanout.RefreshConversation(ctx, msg.SenderID, msg.ReceiverID)
	return msg, nil
}

// Search runs a full-text query over the requester's conversations and
// returns matching messages still visible to them, best match first.
func (s *MessageService) Search(ctx context.Context, requesterID, query string) ([]domain.Message, error) {
	if s.index == nil {
		return nil, nil
	}
	ids, err := s.index.Search(ctx, requesterID, query, searchLimit)
	if err != nil {
		return nil, err
	}

	var results []domain.Message
	for _, id := range ids {
		msg, err := s.messages.GetByID(id)
		if err != nil {
			// The index may briefly reference records not yet visible.
			s.log.Debug("indexed message not loadable", "message_id", id, "error", err)
			continue
		}
		if msg.Involves(requesterID) && msg.VisibleTo(requesterID) {
			results = append(results, msg)
		}
	}
	return results, nil
}

// readAccess is the shared predicate for read/unread flips: requester must
// be the receiver and must not be the sender.
func readAccess(m domain.Message, requesterID string) error {
	if m.ReceiverID != requesterID || m.SenderID == requesterID {
		return fmt.Errorf("message %d: %w", m.ID, errors.ErrForbidden)
	}
	return nil
}
