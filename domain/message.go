package domain

import (
	"time"

	"github.com/google/uuid"
)

// SystemSenderID is the reserved sender of synthetic conversation entries
// (membership, role and settings changes). Regular accounts can never own
// the zero UUID, which keeps the namespace collision-free.
var SystemSenderID = uuid.Nil.String()

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageAudio  MessageType = "audio"
	MessageSystem MessageType = "system"
)

// MessageContent is the plaintext the codec encrypts: what the sender
// actually said, before it is sealed into an envelope.
type MessageContent struct {
	Type     MessageType `json:"type"`
	Content  string      `json:"content"`
	Duration float64     `json:"duration,omitempty"` // seconds, audio only
}

// Message is one immutable row of the append-only log. Envelope holds the
// codec output; it may also be legacy plaintext, which the codec passes
// through unchanged on decode.
type Message struct {
	ID             string
	SenderID       string
	ReceiverID     string // user id for direct messages, group id otherwise
	Envelope       string
	Timestamp      time.Time
	IsGroupMessage bool
}

// DecodedMessage pairs a stored message with its decrypted, parsed content.
type DecodedMessage struct {
	Message
	Content MessageContent
}

// IsSystem reports whether the decoded entry is a synthetic notification
// rather than user content. Both conditions must hold: the reserved sender
// and the system tag inside the decrypted payload.
func (m DecodedMessage) IsSystem() bool {
	return m.SenderID == SystemSenderID && m.Content.Type == MessageSystem
}
