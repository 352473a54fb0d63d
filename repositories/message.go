package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Create(senderID, receiverID, body string, at time.Time) (domain.Message, error)
	GetByID(id uint64) (domain.Message, error)
	Conversation(userA, userB string) ([]domain.Message, error)
	Update(id uint64, mutate func(*domain.Message) error) (domain.Message, error)
	MarkAllRead(senderID, receiverID string) (int, error)
	Close() error
}

// MessageRepository persists direct messages in BadgerDB.
//
// Primary keys are formatted as "msg:{pair}:{id_padded}" where pair is the
// canonical ConversationKey, so a single prefix scan returns both directions
// of a conversation in id order (20-digit zero padding keeps the
// lexicographical order aligned with the numeric one). A secondary
// "msgid:{id_padded}" key points back at the primary key for direct lookup.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

// storedMessage is the on-disk shape of a message, CBOR-encoded.
type storedMessage struct {
	ID                uint64 `cbor:"id"`
	SenderID          string `cbor:"sender_id"`
	ReceiverID        string `cbor:"receiver_id"`
	Body              string `cbor:"body"`
	Read              bool   `cbor:"read"`
	DeletedBySender   bool   `cbor:"deleted_by_sender"`
	DeletedByReceiver bool   `cbor:"deleted_by_receiver"`
	CreatedAt         int64  `cbor:"created_at"` // unix nanoseconds, UTC
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	// Monotonic ids survive restarts; the bandwidth trades a few lost ids
	// on crash for fewer disk writes.
	seq, err := db.GetSequence([]byte("seq:msg"), 64)
	if err != nil {
		return nil, fmt.Errorf("message id sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence. The badger.DB itself is owned by the caller.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// Create persists a new message with read and delete flags unset and
// returns the stored record, id assigned.
func (m *MessageRepository) Create(senderID, receiverID, body string, at time.Time) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}

	stored := storedMessage{
		ID:         next + 1, // sequence starts at 0, ids start at 1
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		CreatedAt:  at.UTC().UnixNano(),
	}

	data, err := cbor.Marshal(stored)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal message: %w", err)
	}

	primary := primaryKey(senderID, receiverID, stored.ID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primary, data); err != nil {
			return err
		}
		return txn.Set(secondaryKey(stored.ID), primary)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toDomain(stored), nil
}

// GetByID resolves a message through its secondary key.
func (m *MessageRepository) GetByID(id uint64) (domain.Message, error) {
	var stored storedMessage
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		stored, _, err = getByID(txn, id)
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toDomain(stored), nil
}

// Conversation returns every message exchanged between the two users, both
// directions, ascending by id. Delete flags are not filtered here; the
// projection layer decides per-viewer visibility.
func (m *MessageRepository) Conversation(userA, userB string) ([]domain.Message, error) {
	prefix := []byte(fmt.Sprintf("msg:%s:", domain.NewConversationKey(userA, userB)))

	var stored []storedMessage
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var msg storedMessage
				if err := cbor.Unmarshal(val, &msg); err != nil {
					return err
				}
				stored = append(stored, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(stored, func(msg storedMessage, _ int) domain.Message {
		return toDomain(msg)
	}), nil
}

// Update applies mutate to the message inside a single transaction: the
// record is read, checked and written back without any observable
// intermediate state, so access predicates evaluated by mutate always see
// the state actually being modified. If mutate returns an error nothing
// is committed and the error is passed through.
func (m *MessageRepository) Update(id uint64, mutate func(*domain.Message) error) (domain.Message, error) {
	var updated domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		stored, primary, err := getByID(txn, id)
		if err != nil {
			return err
		}

		msg := toDomain(stored)
		if err := mutate(&msg); err != nil {
			return err
		}

		stored.Read = msg.Read
		stored.DeletedBySender = msg.DeletedBySender
		stored.DeletedByReceiver = msg.DeletedByReceiver

		data, err := cbor.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if err := txn.Set(primary, data); err != nil {
			return err
		}
		updated = msg
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	return updated, nil
}

// MarkAllRead flips every unread message from senderID to receiverID to
// read, in one transaction, and returns the number of records touched.
// Zero matches is a success.
func (m *MessageRepository) MarkAllRead(senderID, receiverID string) (int, error) {
	prefix := []byte(fmt.Sprintf("msg:%s:", domain.NewConversationKey(senderID, receiverID)))

	count := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			var msg storedMessage
			err := item.Value(func(val []byte) error {
				return cbor.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			if msg.SenderID != senderID || msg.ReceiverID != receiverID || msg.Read {
				continue
			}
			msg.Read = true
			data, err := cbor.Marshal(msg)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.log.Debug("bulk read flip", "sender_id", senderID, "receiver_id", receiverID, "count", count)
	}
	return count, nil
}

// getByID loads a message and its primary key inside txn.
// badger.ErrKeyNotFound is mapped to the domain NotFound error.
func getByID(txn *badger.Txn, id uint64) (storedMessage, []byte, error) {
	item, err := txn.Get(secondaryKey(id))
	if err != nil {
		return storedMessage{}, nil, notFound(err, id)
	}
	primary, err := item.ValueCopy(nil)
	if err != nil {
		return storedMessage{}, nil, err
	}

	item, err = txn.Get(primary)
	if err != nil {
		return storedMessage{}, nil, notFound(err, id)
	}
	var stored storedMessage
	err = item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &stored)
	})
	if err != nil {
		return storedMessage{}, nil, err
	}
	return stored, primary, nil
}

func notFound(err error, id uint64) error {
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("message %d: %w", id, errors.ErrNotFound)
	}
	return err
}

func primaryKey(senderID, receiverID string, id uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%020d", domain.NewConversationKey(senderID, receiverID), id))
}

func secondaryKey(id uint64) []byte {
	return []byte(fmt.Sprintf("msgid:%020d", id))
}

func toDomain(msg storedMessage) domain.Message {
	return domain.Message{
		ID:                msg.ID,
		SenderID:          msg.SenderID,
		ReceiverID:        msg.ReceiverID,
		Body:              msg.Body,
		Read:              msg.Read,
		DeletedBySender:   msg.DeletedBySender,
		DeletedByReceiver: msg.DeletedByReceiver,
		CreatedAt:         time.Unix(0, msg.CreatedAt).UTC(),
	}
}
