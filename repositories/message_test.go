package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"halo-chat/domain"
)

func newMessage(sender, receiver, envelope string, at time.Time, isGroup bool) domain.Message {
	return domain.Message{
		ID:             uuid.New().String(),
		SenderID:       sender,
		ReceiverID:     receiver,
		Envelope:       envelope,
		Timestamp:      at,
		IsGroupMessage: isGroup,
	}
}

func TestMessageRepository_ConversationIsChronological(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t))

	base := time.Now().UTC()
	// Append out of order on purpose, the key layout restores time order.
	req.NoError(repo.Append(newMessage("alice", "bob", "third", base.Add(2*time.Second), false)))
	req.NoError(repo.Append(newMessage("alice", "bob", "first", base, false)))
	req.NoError(repo.Append(newMessage("bob", "alice", "second", base.Add(time.Second), false)))

	msgs, err := repo.Conversation("alice", "bob", false)
	req.NoError(err)
	req.Equal([]string{"first", "second", "third"}, lo.Map(msgs, func(m domain.Message, _ int) string {
		return m.Envelope
	}))
}

func TestMessageRepository_DirectConversationIsSymmetric(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t))

	base := time.Now().UTC()
	req.NoError(repo.Append(newMessage("alice", "bob", "hi", base, false)))
	req.NoError(repo.Append(newMessage("bob", "alice", "hey", base.Add(time.Second), false)))

	fromAlice, err := repo.Conversation("alice", "bob", false)
	req.NoError(err)
	fromBob, err := repo.Conversation("bob", "alice", false)
	req.NoError(err)

	req.Len(fromAlice, 2)
	req.Equal(fromAlice, fromBob)
}

func TestMessageRepository_ConversationsDoNotBleed(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t))

	now := time.Now().UTC()
	groupID := "group-1"
	req.NoError(repo.Append(newMessage("alice", groupID, "to group", now, true)))
	req.NoError(repo.Append(newMessage("alice", "bob", "to bob", now, false)))
	req.NoError(repo.Append(newMessage("alice", "carol", "to carol", now, false)))

	groupMsgs, err := repo.Conversation("alice", groupID, true)
	req.NoError(err)
	req.Len(groupMsgs, 1)
	req.Equal("to group", groupMsgs[0].Envelope)

	bobMsgs, err := repo.Conversation("alice", "bob", false)
	req.NoError(err)
	req.Len(bobMsgs, 1)
	req.Equal("to bob", bobMsgs[0].Envelope)
}

func TestMessageRepository_SameTimestampKeepsBothMessages(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t))

	at := time.Now().UTC()
	req.NoError(repo.Append(newMessage("alice", "bob", "one", at, false)))
	req.NoError(repo.Append(newMessage("alice", "bob", "two", at, false)))

	msgs, err := repo.Conversation("alice", "bob", false)
	req.NoError(err)
	req.Len(msgs, 2)
}

func TestMessageRepository_DirectPartners(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t))

	now := time.Now().UTC()
	req.NoError(repo.Append(newMessage("alice", "bob", "1", now, false)))
	req.NoError(repo.Append(newMessage("bob", "alice", "2", now.Add(time.Second), false)))
	req.NoError(repo.Append(newMessage("carol", "alice", "3", now, false)))
	req.NoError(repo.Append(newMessage("alice", "group-1", "4", now, true)))
	req.NoError(repo.Append(newMessage("bob", "carol", "5", now, false)))

	partners, err := repo.DirectPartners("alice")
	req.NoError(err)
	req.ElementsMatch([]string{"bob", "carol"}, partners)

	count, err := repo.Count()
	req.NoError(err)
	req.Equal(5, count)
}
