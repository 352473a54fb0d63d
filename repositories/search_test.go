package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"
)

func newTestSearchIndex(t *testing.T) *SearchIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewSearchIndex(writer, slog.Default())
}

func TestSearch_RestrictedToParticipants(t *testing.T) {
	req := require.New(t)
	index := newTestSearchIndex(t)
	at := time.Now().UTC()

	req.NoError(index.Index(domain.Message{
		ID: 1, SenderID: "alice", ReceiverID: "bob",
		Body: "quarterly invoice attached", CreatedAt: at,
	}))
	req.NoError(index.Index(domain.Message{
		ID: 2, SenderID: "clara", ReceiverID: "dave",
		Body: "another invoice entirely", CreatedAt: at,
	}))

	ids, err := index.Search(context.Background(), "bob", "invoice", 10)
	req.NoError(err)
	req.Equal([]uint64{1}, ids)

	ids, err = index.Search(context.Background(), "clara", "invoice", 10)
	req.NoError(err)
	req.Equal([]uint64{2}, ids)

	ids, err = index.Search(context.Background(), "eve", "invoice", 10)
	req.NoError(err)
	req.Empty(ids)
}

func TestSearch_NoMatch(t *testing.T) {
	req := require.New(t)
	index := newTestSearchIndex(t)

	req.NoError(index.Index(domain.Message{
		ID: 1, SenderID: "alice", ReceiverID: "bob", Body: "hello there",
	}))

	ids, err := index.Search(context.Background(), "bob", "unrelated", 10)
	req.NoError(err)
	req.Empty(ids)
}

func TestIndex_UpdateReplacesDocument(t *testing.T) {
	req := require.New(t)
	index := newTestSearchIndex(t)

	msg := domain.Message{ID: 7, SenderID: "alice", ReceiverID: "bob", Body: "draft wording"}
	req.NoError(index.Index(msg))

	msg.Body = "final wording"
	req.NoError(index.Index(msg))

	ids, err := index.Search(context.Background(), "alice", "draft", 10)
	req.NoError(err)
	req.Empty(ids)

	ids, err = index.Search(context.Background(), "alice", "final", 10)
	req.NoError(err)
	req.Equal([]uint64{7}, ids)
}
