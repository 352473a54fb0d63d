package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/mocks"
	"chat-relay/projection"
	"chat-relay/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestFanout(t *testing.T) (*Fanout, *Registry, repositories.IMessageRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	messages, err := repositories.NewMessageRepository(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	registry := NewRegistry()
	fanout := NewFanout(slog.Default(), registry, projection.NewProjector(messages))
	return fanout, registry, messages
}

func TestEmit_OnlyRecipientsChannels(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fanout, registry, messages := newTestFanout(t)
	ctx := context.Background()

	msg, err := messages.Create("alice", "bob", "hi", time.Now().UTC())
	req.NoError(err)

	bobSink := mocks.NewMockEventSink(ctrl)
	claraSink := mocks.NewMockEventSink(ctrl)
	registry.Bind("conn-bob", "bob", bobSink)
	registry.Bind("conn-clara", "clara", claraSink)

	// Only bob's sink sees the event; clara's expects nothing.
	received := event.MessageReceived{Message: msg}
	bobSink.EXPECT().Consume(ctx, received).Return(nil)

	fanout.Emit(ctx, received)
}

func TestEmit_NoConnectionIsSilentlyDropped(t *testing.T) {
	fanout, _, _ := newTestFanout(t)
	fanout.Emit(context.Background(), event.MessageRead{MessageID: 1, SenderID: "nobody-online"})
}

func TestEmit_SinkErrorDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fanout, registry, messages := newTestFanout(t)
	ctx := context.Background()

	msg, err := messages.Create("alice", "bob", "hi", time.Now().UTC())
	req.NoError(err)

	full := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)
	registry.Bind("conn-1", "bob", full)
	registry.Bind("conn-2", "bob", healthy)

	received := event.MessageReceived{Message: msg}
	full.EXPECT().Consume(ctx, received).Return(context.DeadlineExceeded)
	healthy.EXPECT().Consume(ctx, received).Return(nil)

	fanout.Emit(ctx, received)
}

func TestRefreshConversation_PerViewerProjections(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fanout, registry, messages := newTestFanout(t)
	ctx := context.Background()

	_, err := messages.Create("alice", "bob", "hi", time.Now().UTC())
	req.NoError(err)

	aliceSink := mocks.NewMockEventSink(ctrl)
	bobSink := mocks.NewMockEventSink(ctrl)
	registry.Bind("conn-alice", "alice", aliceSink)
	registry.Bind("conn-bob", "bob", bobSink)

	var aliceUpdate, bobUpdate event.ConversationUpdated
	aliceSink.EXPECT().
		Consume(ctx, gomock.AssignableToTypeOf(event.ConversationUpdated{})).
		DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
			aliceUpdate = e.(event.ConversationUpdated)
			return nil
		})
	bobSink.EXPECT().
		Consume(ctx, gomock.AssignableToTypeOf(event.ConversationUpdated{})).
		DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
			bobUpdate = e.(event.ConversationUpdated)
			return nil
		})

	fanout.RefreshConversation(ctx, "alice", "bob")

	req.Equal("alice", aliceUpdate.ViewerID)
	req.Equal("bob", bobUpdate.ViewerID)
	req.Len(aliceUpdate.Messages, 1)
	req.Len(bobUpdate.Messages, 1)
}

func TestRefreshConversation_HiddenSideDiverges(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fanout, registry, messages := newTestFanout(t)
	ctx := context.Background()

	msg, err := messages.Create("alice", "bob", "hi", time.Now().UTC())
	req.NoError(err)
	_, err = messages.Update(msg.ID, func(m *domain.Message) error {
		m.DeletedBySender = true
		return nil
	})
	req.NoError(err)

	aliceSink := mocks.NewMockEventSink(ctrl)
	bobSink := mocks.NewMockEventSink(ctrl)
	registry.Bind("conn-alice", "alice", aliceSink)
	registry.Bind("conn-bob", "bob", bobSink)

	aliceSink.EXPECT().
		Consume(ctx, gomock.AssignableToTypeOf(event.ConversationUpdated{})).
		DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
			require.Empty(t, e.(event.ConversationUpdated).Messages)
			return nil
		})
	bobSink.EXPECT().
		Consume(ctx, gomock.AssignableToTypeOf(event.ConversationUpdated{})).
		DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
			require.Len(t, e.(event.ConversationUpdated).Messages, 1)
			return nil
		})

	fanout.RefreshConversation(ctx, "alice", "bob")
}

func TestRefreshConversation_OfflineViewerSkipped(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fanout, registry, messages := newTestFanout(t)
	ctx := context.Background()

	_, err := messages.Create("alice", "bob", "hi", time.Now().UTC())
	req.NoError(err)

	// Only bob is online; no projection is attempted for alice.
	bobSink := mocks.NewMockEventSink(ctrl)
	registry.Bind("conn-bob", "bob", bobSink)
	bobSink.EXPECT().
		Consume(ctx, gomock.AssignableToTypeOf(event.ConversationUpdated{})).
		Return(nil)

	fanout.RefreshConversation(ctx, "alice", "bob")
}

func TestRefreshConversation_SelfConversationSingleUpdate(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fanout, registry, messages := newTestFanout(t)
	ctx := context.Background()

	_, err := messages.Create("alice", "alice", "note", time.Now().UTC())
	req.NoError(err)

	aliceSink := mocks.NewMockEventSink(ctrl)
	registry.Bind("conn-alice", "alice", aliceSink)

	// One refresh, not two, for a self-conversation.
	aliceSink.EXPECT().
		Consume(ctx, gomock.AssignableToTypeOf(event.ConversationUpdated{})).
		Return(nil).
		Times(1)

	fanout.RefreshConversation(ctx, "alice", "alice")
}
