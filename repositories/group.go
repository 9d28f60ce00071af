//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"halo-chat/domain"
	"halo-chat/errors"
)

type IGroupRepository interface {
	Create(group domain.Group) error
	Get(id string) (domain.Group, error)
	GetBySlug(slug string) (domain.Group, error)
	GetByInviteCode(code string) (domain.Group, error)
	Update(id string, mutate func(*domain.Group) error) (domain.Group, error)
	All() ([]domain.Group, error)
	ListByMember(userID string) ([]domain.Group, error)
	SlugExists(slug string) (bool, error)
	Count() (int, error)
}

// GroupRepository stores group records plus two secondary indexes: slug
// and active invite code, both resolving to the group id. Every mutation
// runs inside a single badger transaction, so concurrent writers cannot
// interleave a read-modify-write and silently lose an update: the losing
// transaction aborts instead.
type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) IGroupRepository {
	return &GroupRepository{db: db}
}

func groupKey(id string) []byte {
	return []byte("group:id:" + id)
}

func slugKey(slug string) []byte {
	return []byte("group:slug:" + strings.ToLower(slug))
}

func inviteKey(code string) []byte {
	return []byte("group:invite:" + code)
}

// Create persists a freshly constructed group. Slug uniqueness is checked
// inside the transaction; slug format validation belongs to the service.
func (g GroupRepository) Create(group domain.Group) error {
	data, err := encMode.Marshal(toGroupRecord(group))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return g.db.Update(func(txn *badger.Txn) error {
		if group.Slug != "" {
			if _, err := txn.Get(slugKey(group.Slug)); err == nil {
				return errors.ErrSlugTaken
			}
			if err := txn.Set(slugKey(group.Slug), []byte(group.ID)); err != nil {
				return err
			}
		}
		return txn.Set(groupKey(group.ID), data)
	})
}

func (g GroupRepository) Get(id string) (domain.Group, error) {
	var rec groupRecord
	err := g.db.View(func(txn *badger.Txn) error {
		return readRecord(txn, groupKey(id), &rec)
	})
	if err != nil {
		return domain.Group{}, err
	}
	return toGroup(rec), nil
}

// GetBySlug resolves a public handle, case-insensitive.
func (g GroupRepository) GetBySlug(slug string) (domain.Group, error) {
	return g.getViaIndex(slugKey(slug))
}

// GetByInviteCode resolves an active invite code. Expiry is not checked
// here: the service decides what an expired-but-still-indexed code means.
func (g GroupRepository) GetByInviteCode(code string) (domain.Group, error) {
	return g.getViaIndex(inviteKey(code))
}

func (g GroupRepository) getViaIndex(key []byte) (domain.Group, error) {
	var rec groupRecord
	err := g.db.View(func(txn *badger.Txn) error {
		id, err := readIndex(txn, key)
		if err != nil {
			return err
		}
		return readRecord(txn, groupKey(id), &rec)
	})
	if err != nil {
		return domain.Group{}, err
	}
	return toGroup(rec), nil
}

func (g GroupRepository) SlugExists(slug string) (bool, error) {
	exists := false
	err := g.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(slugKey(slug)); err == nil {
			exists = true
		}
		return nil
	})
	return exists, err
}

// Update loads the group, hands a decoded copy to mutate, and writes the
// result back, all in one transaction. If mutate swaps the invite, the
// old code's index entry is deleted and the new one written atomically
// with the record, so a replaced code stops matching the moment the new
// one exists.
func (g GroupRepository) Update(id string, mutate func(*domain.Group) error) (domain.Group, error) {
	var updated domain.Group
	err := g.db.Update(func(txn *badger.Txn) error {
		var rec groupRecord
		if err := readRecord(txn, groupKey(id), &rec); err != nil {
			return err
		}

		group := toGroup(rec)
		oldInvite := ""
		if group.Invite != nil {
			oldInvite = group.Invite.Code
		}

		if err := mutate(&group); err != nil {
			return err
		}
		group.ID = rec.ID // immutable

		newInvite := ""
		if group.Invite != nil {
			newInvite = group.Invite.Code
		}
		if oldInvite != newInvite {
			if oldInvite != "" {
				if err := txn.Delete(inviteKey(oldInvite)); err != nil {
					return err
				}
			}
			if newInvite != "" {
				if err := txn.Set(inviteKey(newInvite), []byte(group.ID)); err != nil {
					return err
				}
			}
		}

		data, err := encMode.Marshal(toGroupRecord(group))
		if err != nil {
			return err
		}
		updated = group
		return txn.Set(groupKey(id), data)
	})
	if err != nil {
		return domain.Group{}, err
	}
	return updated, nil
}

// All scans every stored group.
func (g GroupRepository) All() ([]domain.Group, error) {
	var groups []domain.Group
	err := g.db.View(func(txn *badger.Txn) error {
		prefix := []byte("group:id:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec groupRecord
			err := it.Item().Value(func(val []byte) error {
				return decMode.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			groups = append(groups, toGroup(rec))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// ListByMember keeps the groups where userID currently holds a
// membership row.
func (g GroupRepository) ListByMember(userID string) ([]domain.Group, error) {
	all, err := g.All()
	if err != nil {
		return nil, err
	}

	var groups []domain.Group
	for _, group := range all {
		if group.IsMember(userID) {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

func (g GroupRepository) Count() (int, error) {
	return countPrefix(g.db, []byte("group:id:"))
}
