package repositories

import (
	"fmt"
	"time"

	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(username, email, hashedPassword string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetByID(userID string) (User, error)
	Exists(userID string) (bool, error)
}

// UserRepository stores accounts in BadgerDB under two keys: "user:{email}"
// holds the record, "userid:{id}" points back at the email so existence
// checks and id lookups stay a single Get.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

type User struct {
	ID           string `cbor:"id"`
	Username     string `cbor:"username"`
	Email        string `cbor:"email"`
	PasswordHash string `cbor:"password_hash"`
	CreatedAt    int64  `cbor:"created_at"` // unix seconds, UTC
}

// CreateUser persists a new account. The email must be unused; the check
// and the insert happen in the same transaction.
func (u UserRepository) CreateUser(username, email, hashedPassword string) (User, error) {
	user := User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().Unix(),
	}

	data, err := cbor.Marshal(user)
	if err != nil {
		return User{}, fmt.Errorf("marshal user: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte("user:" + email)
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey, data); err != nil {
			return err
		}
		return txn.Set([]byte("userid:"+user.ID), []byte(email))
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &user)
		})
	})
	if err == badger.ErrKeyNotFound {
		return User{}, errors.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetByID resolves the id index then loads the record by email.
func (u UserRepository) GetByID(userID string) (User, error) {
	var email string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("userid:" + userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			email = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return User{}, errors.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u.GetUserByEmail(email)
}

// Exists reports whether a user id resolves, without loading the record.
func (u UserRepository) Exists(userID string) (bool, error) {
	err := u.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("userid:" + userID))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
