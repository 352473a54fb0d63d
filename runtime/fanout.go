package runtime

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/projection"
)

// Fanout broadcasts domain events to the channels of the users they target.
//
// It provides best-effort delivery with no guarantees regarding ordering,
// durability, or retries. A user without a live connection simply misses
// the event and sees correct state on their next fetch. Fanout is not a
// message broker.
//
// Fanout is safe for concurrent use by multiple goroutines.
type Fanout struct {
	log       *slog.Logger
	registry  contract.IRegistry
	projector *projection.Projector
}

func NewFanout(log *slog.Logger, registry contract.IRegistry, projector *projection.Projector) *Fanout {
	return &Fanout{log: log, registry: registry, projector: projector}
}

// Emit delivers a granular event to every live sink of each recipient.
func (f *Fanout) Emit(ctx context.Context, e event.DomainEvent) {
	for _, userID := range e.Recipients() {
		for _, sink := range f.registry.SinksFor(userID) {
			if err := sink.Consume(ctx, e); err != nil {
				f.log.Debug("event lost", "event", e.Name(), "user_id", userID, "error", err)
			}
		}
	}
}

// RefreshConversation recomputes the projection of the {user1, user2}
// conversation for each participant and delivers it to that participant's
// own channel only. Each viewer gets their view, never the other side's.
// Projections are only computed for participants with a live connection.
func (f *Fanout) RefreshConversation(ctx context.Context, user1ID, user2ID string) {
	viewers := []string{user1ID}
	if user2ID != user1ID {
		viewers = append(viewers, user2ID)
	}

	for _, viewerID := range viewers {
		sinks := f.registry.SinksFor(viewerID)
		if len(sinks) == 0 {
			continue
		}
		other := user1ID
		if viewerID == user1ID {
			other = user2ID
		}
		messages, err := f.projector.Project(viewerID, other)
		if err != nil {
			f.log.Error("projection failed, view not refreshed",
				"viewer_id", viewerID, "other_id", other, "error", err)
			continue
		}
		update := event.ConversationUpdated{
			ViewerID: viewerID,
			User1ID:  user1ID,
			User2ID:  user2ID,
			Messages: messages,
		}
		for _, sink := range sinks {
			if err := sink.Consume(ctx, update); err != nil {
				f.log.Debug("projection refresh lost", "viewer_id", viewerID, "error", err)
			}
		}
	}
}
