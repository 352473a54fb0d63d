// Package ws exposes the messaging core over a websocket event protocol.
// Frames are JSON envelopes: {"event": "...", "data": {...}}.
package ws

import (
	"encoding/json"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/samber/lo"
)

// Envelope is one protocol frame, inbound or outbound.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads. Ids travel as strings (user ids are uuids) except
// message ids, which are numeric.
type authenticatePayload struct {
	Credential string `json:"credential"`
}

type registerPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

type otherUserPayload struct {
	OtherUserID string `json:"otherUserId"`
}

type messageIDPayload struct {
	MessageID uint64 `json:"messageId"`
}

type searchPayload struct {
	Query string `json:"query"`
}

// wireMessage is the outbound shape of a message.
type wireMessage struct {
	ID         uint64    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

type wireUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func toWireMessage(m domain.Message) wireMessage {
	return wireMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Body,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
	}
}

func toWireMessages(messages []domain.Message) []wireMessage {
	return lo.Map(messages, func(m domain.Message, _ int) wireMessage {
		return toWireMessage(m)
	})
}

func newEnvelope(eventName string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: eventName, Data: data}, nil
}

// toOutbound maps a domain event to its protocol frame.
func toOutbound(e event.DomainEvent) (Envelope, error) {
	switch evt := e.(type) {
	case event.MessageReceived:
		return newEnvelope(evt.Name(), toWireMessage(evt.Message))
	case event.MessageRead:
		return newEnvelope(evt.Name(), map[string]any{
			"messageId": evt.MessageID,
			"readBy":    evt.ReadBy,
		})
	case event.MessageUnread:
		return newEnvelope(evt.Name(), map[string]any{
			"messageId": evt.MessageID,
			"unreadBy":  evt.UnreadBy,
		})
	case event.MessageDeleted:
		return newEnvelope(evt.Name(), map[string]any{
			"messageId": evt.MessageID,
			"success":   true,
		})
	case event.ConversationUpdated:
		return newEnvelope(evt.Name(), map[string]any{
			"user1Id":  evt.User1ID,
			"user2Id":  evt.User2ID,
			"messages": toWireMessages(evt.Messages),
		})
	default:
		return newEnvelope(e.Name(), nil)
	}
}
