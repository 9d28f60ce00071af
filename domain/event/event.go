package event

import (
	"time"

	"halo-chat/domain"
)

// DomainEvent is anything the polling workers observe and fan out to
// in-process consumers. ChatID identifies the conversation the event
// belongs to: a peer user id for direct chats, a group id otherwise.
type DomainEvent interface {
	ChatID() string
}

// ConversationRefreshed carries the full decoded conversation after a
// poll detected new entries. Redundant deliveries are harmless; sinks
// must treat the payload as a snapshot, not a delta.
type ConversationRefreshed struct {
	Chat     string
	Messages []domain.DecodedMessage
}

func (e ConversationRefreshed) ChatID() string { return e.Chat }

// TypingChanged reports the current set of active typers in a chat.
type TypingChanged struct {
	Chat    string
	UserIDs []string
}

func (e TypingChanged) ChatID() string { return e.Chat }

// PresenceChanged reports a fresher last-seen timestamp for a direct
// chat peer.
type PresenceChanged struct {
	UserID   string
	LastSeen time.Time
}

func (e PresenceChanged) ChatID() string { return e.UserID }
