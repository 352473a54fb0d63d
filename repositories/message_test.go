package repositories

import (
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestMessageRepository(t *testing.T) *MessageRepository {
	t.Helper()
	repo, err := NewMessageRepository(openTestDB(t), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestCreateAndGetByID(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	at := time.Now().UTC()
	created, err := repo.Create("alice", "bob", "hello bob", at)
	req.NoError(err)
	req.NotZero(created.ID)
	req.False(created.Read)
	req.False(created.DeletedBySender)
	req.False(created.DeletedByReceiver)

	fetched, err := repo.GetByID(created.ID)
	req.NoError(err)
	req.Equal(created, fetched)
}

func TestGetByID_Unknown(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	_, err := repo.GetByID(12345)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestConversation_BothDirections_InOrder(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	at := time.Now().UTC()
	m1, err := repo.Create("alice", "bob", "first", at)
	req.NoError(err)
	m2, err := repo.Create("bob", "alice", "second", at.Add(time.Minute))
	req.NoError(err)
	m3, err := repo.Create("alice", "bob", "third", at.Add(2*time.Minute))
	req.NoError(err)
	// Unrelated traffic must not leak into the pair.
	_, err = repo.Create("alice", "clara", "other conversation", at)
	req.NoError(err)

	// Both participant orders resolve to the same conversation.
	forward, err := repo.Conversation("alice", "bob")
	req.NoError(err)
	backward, err := repo.Conversation("bob", "alice")
	req.NoError(err)
	req.Equal(forward, backward)

	req.Equal([]domain.Message{m1, m2, m3}, forward)
}

func TestUpdate_MutatorErrorCommitsNothing(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	created, err := repo.Create("alice", "bob", "hello", time.Now().UTC())
	req.NoError(err)

	_, err = repo.Update(created.ID, func(m *domain.Message) error {
		m.Read = true
		return errors.ErrForbidden
	})
	req.ErrorIs(err, errors.ErrForbidden)

	fetched, err := repo.GetByID(created.ID)
	req.NoError(err)
	req.False(fetched.Read)
}

func TestUpdate_PersistsFlags(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	created, err := repo.Create("alice", "bob", "hello", time.Now().UTC())
	req.NoError(err)

	updated, err := repo.Update(created.ID, func(m *domain.Message) error {
		m.Read = true
		m.DeletedBySender = true
		return nil
	})
	req.NoError(err)
	req.True(updated.Read)
	req.True(updated.DeletedBySender)

	fetched, err := repo.GetByID(created.ID)
	req.NoError(err)
	req.Equal(updated, fetched)
}

func TestMarkAllRead_CountsAndDirection(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	at := time.Now().UTC()
	_, err := repo.Create("carol", "dave", "one", at)
	req.NoError(err)
	_, err = repo.Create("carol", "dave", "two", at.Add(time.Second))
	req.NoError(err)
	// Opposite direction must stay untouched.
	backMsg, err := repo.Create("dave", "carol", "reply", at.Add(2*time.Second))
	req.NoError(err)

	count, err := repo.MarkAllRead("carol", "dave")
	req.NoError(err)
	req.Equal(2, count)

	// Second pass finds nothing unread.
	count, err = repo.MarkAllRead("carol", "dave")
	req.NoError(err)
	req.Equal(0, count)

	fetched, err := repo.GetByID(backMsg.ID)
	req.NoError(err)
	req.False(fetched.Read)
}

func TestIDsAreMonotonic(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	at := time.Now().UTC()
	var last uint64
	for i := 0; i < 10; i++ {
		msg, err := repo.Create("alice", "bob", "tick", at)
		req.NoError(err)
		req.Greater(msg.ID, last)
		last = msg.ID
	}
}
