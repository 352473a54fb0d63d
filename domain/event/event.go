// Package event defines the granular domain events emitted after each
// successful mutation. Every event names the user channels it targets;
// delivery itself is best-effort and owned by the fanout.
package event

import (
	"chat-relay/domain"
)

// DomainEvent is anything the fanout can deliver to a user channel.
type DomainEvent interface {
	// Name is the protocol event name sent over the wire.
	Name() string
	// Recipients lists the user ids whose channels receive the event.
	Recipients() []string
}

// MessageReceived notifies the receiver that a new message arrived.
type MessageReceived struct {
	Message domain.Message
}

func (e MessageReceived) Name() string { return "new_message" }

func (e MessageReceived) Recipients() []string {
	return []string{e.Message.ReceiverID}
}

// MessageRead notifies the sender that their message was read.
type MessageRead struct {
	MessageID uint64
	SenderID  string
	ReadBy    string
}

func (e MessageRead) Name() string { return "message_read" }
func (e MessageRead) Recipients() []string { return []string{e.SenderID} }

// MessageUnread notifies the sender that their message was flipped back
// to unread.
type MessageUnread struct {
	MessageID uint64
	SenderID  string
	UnreadBy  string
}

func (e MessageUnread) Name() string { return "message_unread" }
func (e MessageUnread) Recipients() []string { return []string{e.SenderID} }

// MessageDeleted confirms a soft delete. For delete-for-me only the
// requester is notified; for delete-for-all both participants are.
type MessageDeleted struct {
	MessageID uint64
	Targets   []string
}

func (e MessageDeleted) Name() string { return "message_deleted" }
func (e MessageDeleted) Recipients() []string { return e.Targets }

// ConversationUpdated carries one viewer's recomputed projection of a
// conversation. Each participant receives their own view, never the
// other side's.
type ConversationUpdated struct {
	ViewerID string
	User1ID  string
	User2ID  string
	Messages []domain.Message
}

func (e ConversationUpdated) Name() string { return "conversation_updated" }
func (e ConversationUpdated) Recipients() []string { return []string{e.ViewerID} }
