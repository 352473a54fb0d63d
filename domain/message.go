// Package domain contains core concepts of the messaging system.
// This file defines direct messages and their per-viewer visibility rules.
// A message is never physically removed: the delete flags only hide it
// from one side of the conversation.
package domain

import (
	"time"
)

// Message represents a direct message between two users.
// ID, SenderID, ReceiverID, Body and CreatedAt are immutable after creation.
// Read may toggle in both directions; the delete flags are only ever set,
// never cleared.
type Message struct {
	ID                uint64
	SenderID          string
	ReceiverID        string
	Body              string
	Read              bool
	DeletedBySender   bool
	DeletedByReceiver bool
	CreatedAt         time.Time
}

// VisibleTo reports whether the message still appears in viewerID's
// projection of the conversation. A self-message is visible as long as
// neither flag is set.
func (m Message) VisibleTo(viewerID string) bool {
	if m.SenderID == viewerID && m.DeletedBySender {
		return false
	}
	if m.ReceiverID == viewerID && m.DeletedByReceiver {
		return false
	}
	return m.SenderID == viewerID || m.ReceiverID == viewerID
}

// Involves reports whether userID is one of the two participants.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}
