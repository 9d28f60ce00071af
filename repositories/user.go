//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"halo-chat/domain"
	"halo-chat/errors"
)

type IUserRepository interface {
	Create(user domain.User, passwordHash string) (domain.User, error)
	GetByID(id string) (domain.User, error)
	GetByLogin(usernameOrEmail string) (domain.User, string, error)
	CheckAvailability(username, email string) error
	Update(id string, mutate func(*domain.User) error) (domain.User, error)
	Heartbeat(id string, at time.Time) error
	Search(query, selfID string) ([]domain.User, error)
	Count() (int, error)
}

// UserRepository is the identity directory. Uniqueness of username and
// email is case-insensitive, enforced through secondary index keys
// written in the same transaction as the record.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

func userKey(id string) []byte {
	return []byte("user:id:" + id)
}

func usernameKey(username string) []byte {
	return []byte("user:name:" + strings.ToLower(username))
}

func emailKey(email string) []byte {
	return []byte("user:email:" + strings.ToLower(email))
}

// Create persists a new account. The caller provides the already-hashed
// password; plain passwords never reach this layer.
func (u UserRepository) Create(user domain.User, passwordHash string) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	data, err := encMode.Marshal(toUserRecord(user, passwordHash))
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(usernameKey(user.Username)); err == nil {
			return errors.ErrUsernameTaken
		}
		if _, err := txn.Get(emailKey(user.Email)); err == nil {
			return errors.ErrEmailTaken
		}
		if err := txn.Set(userKey(user.ID), data); err != nil {
			return err
		}
		if err := txn.Set(usernameKey(user.Username), []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(emailKey(user.Email), []byte(user.ID))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u UserRepository) GetByID(id string) (domain.User, error) {
	var rec userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		return readRecord(txn, userKey(id), &rec)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(rec), nil
}

// GetByLogin resolves a user by username or email, both case-insensitive,
// and returns the stored password hash alongside the profile.
func (u UserRepository) GetByLogin(usernameOrEmail string) (domain.User, string, error) {
	var rec userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		id, err := readIndex(txn, usernameKey(usernameOrEmail))
		if err == errors.ErrNotFound {
			id, err = readIndex(txn, emailKey(usernameOrEmail))
		}
		if err != nil {
			return err
		}
		return readRecord(txn, userKey(id), &rec)
	})
	if err != nil {
		return domain.User{}, "", err
	}
	return toUser(rec), rec.PasswordHash, nil
}

// CheckAvailability reports whether both the username and the email are
// still free, with username checked first so the caller can highlight the
// right form field.
func (u UserRepository) CheckAvailability(username, email string) error {
	return u.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(usernameKey(username)); err == nil {
			return errors.ErrUsernameTaken
		}
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrEmailTaken
		}
		return nil
	})
}

// Update applies mutate to a fresh decoded copy of the record inside one
// transaction and persists the result. Callers never receive a live
// reference into stored state.
func (u UserRepository) Update(id string, mutate func(*domain.User) error) (domain.User, error) {
	var updated domain.User
	err := u.db.Update(func(txn *badger.Txn) error {
		var rec userRecord
		if err := readRecord(txn, userKey(id), &rec); err != nil {
			return err
		}

		user := toUser(rec)
		if err := mutate(&user); err != nil {
			return err
		}
		// Identity fields are immutable through this path.
		user.ID = rec.ID
		user.Username = rec.Username
		user.Email = rec.Email

		data, err := encMode.Marshal(toUserRecord(user, rec.PasswordHash))
		if err != nil {
			return err
		}
		updated = user
		return txn.Set(userKey(id), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

// Heartbeat refreshes the last-seen timestamp.
func (u UserRepository) Heartbeat(id string, at time.Time) error {
	_, err := u.Update(id, func(user *domain.User) error {
		user.LastSeen = at.UTC()
		return nil
	})
	return err
}

// Search matches query as a case-insensitive substring of username or
// display name, strips a leading @, and excludes selfID. An empty query
// matches nobody.
func (u UserRepository) Search(query, selfID string) ([]domain.User, error) {
	clean := strings.ToLower(strings.TrimPrefix(query, "@"))
	if clean == "" {
		return nil, nil
	}

	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:id:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec userRecord
			err := it.Item().Value(func(val []byte) error {
				return decMode.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			if rec.ID == selfID {
				continue
			}
			if strings.Contains(strings.ToLower(rec.Username), clean) ||
				strings.Contains(strings.ToLower(rec.DisplayName), clean) {
				users = append(users, toUser(rec))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (u UserRepository) Count() (int, error) {
	return countPrefix(u.db, []byte("user:id:"))
}

// readRecord decodes the CBOR value at key into out, mapping a missing
// key to the domain NotFound sentinel.
func readRecord(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return errors.ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return decMode.Unmarshal(val, out)
	})
}

func readIndex(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return "", errors.ErrNotFound
		}
		return "", err
	}
	var id string
	err = item.Value(func(val []byte) error {
		id = string(val)
		return nil
	})
	return id, err
}

func countPrefix(db *badger.DB, prefix []byte) (int, error) {
	count := 0
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
