//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"halo-chat/domain"
)

type IMessageRepository interface {
	Append(msg domain.Message) error
	Conversation(selfID, targetID string, isGroup bool) ([]domain.Message, error)
	DirectPartners(userID string) ([]string, error)
	Count() (int, error)
}

// MessageRepository is the append-only log. Keys embed a 19-digit
// zero-padded nanosecond timestamp so a plain forward prefix scan yields
// the conversation in chronological order, with the message UUID as a
// collision disconnector if two entries land on the same nanosecond:
//
//	msg:g:{groupID}:{timestamp}:{uuid}
//	msg:d:{low}:{high}:{timestamp}:{uuid}
//
// Direct conversations use the lexicographically ordered pair of user
// ids, so both directions of a chat share one prefix and the symmetric
// union comes out of a single scan.
type MessageRepository struct {
	db *badger.DB
}

func NewMessageRepository(db *badger.DB) IMessageRepository {
	return &MessageRepository{db: db}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func messageKey(msg domain.Message) []byte {
	var scope string
	if msg.IsGroupMessage {
		scope = "g:" + msg.ReceiverID
	} else {
		scope = "d:" + pairKey(msg.SenderID, msg.ReceiverID)
	}
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", scope, msg.Timestamp.UnixNano(), msg.ID))
}

func (m MessageRepository) Append(msg domain.Message) error {
	data, err := encMode.Marshal(toMessageRecord(msg))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), data)
	})
}

// Conversation returns the full ordered history between selfID and
// targetID (a peer user for direct chats, a group id otherwise).
func (m MessageRepository) Conversation(selfID, targetID string, isGroup bool) ([]domain.Message, error) {
	var prefix []byte
	if isGroup {
		prefix = []byte("msg:g:" + targetID + ":")
	} else {
		prefix = []byte("msg:d:" + pairKey(selfID, targetID) + ":")
	}

	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec messageRecord
			err := it.Item().Value(func(val []byte) error {
				return decMode.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			msg := toMessage(rec)
			if msg.IsGroupMessage != isGroup {
				continue
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// DirectPartners lists the distinct users userID has exchanged direct
// messages with. The pair is parsed out of the key, so the scan never
// decodes a value.
func (m MessageRepository) DirectPartners(userID string) ([]string, error) {
	var partners []string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:d:")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			// msg:d:{low}:{high}:{timestamp}:{uuid}
			parts := strings.Split(string(it.Item().Key()), ":")
			if len(parts) != 6 {
				continue
			}
			low, high := parts[2], parts[3]
			switch userID {
			case low:
				partners = append(partners, high)
			case high:
				partners = append(partners, low)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Uniq(partners), nil
}

func (m MessageRepository) Count() (int, error) {
	return countPrefix(m.db, []byte("msg:"))
}
