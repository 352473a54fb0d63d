// Package projection computes viewer-specific views of conversations.
// A projection is always rebuilt from storage: there is no incremental
// cache that could drift from the latest state.
package projection

import (
	"sort"

	"chat-relay/domain"
	"chat-relay/repositories"

	"github.com/samber/lo"
)

// Projector turns the raw conversation log into the ordered, filtered
// sequence one participant is allowed to see.
type Projector struct {
	messages repositories.IMessageRepository
}

func NewProjector(messages repositories.IMessageRepository) *Projector {
	return &Projector{messages: messages}
}

// Project returns the messages of the {viewer, other} conversation visible
// to viewerID, ascending by creation time with ids breaking ties. The two
// participants of the same conversation get two independent projections.
func (p *Projector) Project(viewerID, otherUserID string) ([]domain.Message, error) {
	all, err := p.messages.Conversation(viewerID, otherUserID)
	if err != nil {
		return nil, err
	}

	visible := lo.Filter(all, func(msg domain.Message, _ int) bool {
		return msg.VisibleTo(viewerID)
	})

	sort.Slice(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.Before(visible[j].CreatedAt)
		}
		return visible[i].ID < visible[j].ID
	})
	return visible, nil
}
