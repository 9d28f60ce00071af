package services

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"halo-chat/codec"
	"halo-chat/domain"
	"halo-chat/errors"
	"halo-chat/moderation"
	"halo-chat/presence"
	"halo-chat/repositories"
)

type IChatService interface {
	Send(cmd SendCommand) (domain.DecodedMessage, error)
	System(groupID, text string) error
	Conversation(selfID, targetID string, isGroup bool) ([]domain.DecodedMessage, error)
	TypingHeartbeat(chatID, userID string)
	ActiveTypers(chatID, selfID string) []string
	RecentChats(userID string) ([]RecentChat, error)
	SearchUsers(query, selfID string) ([]domain.User, error)
}

type SendCommand struct {
	SenderID   string
	ReceiverID string
	IsGroup    bool
	Type       domain.MessageType
	Text       string
	// AudioBase64 carries the recorded clip for audio messages.
	AudioBase64 string
	Duration    float64
}

// RecentChat is one row of the conversation list: either a direct
// partner or a group the user belongs to.
type RecentChat struct {
	ID      string
	Name    string
	Avatar  string
	IsGroup bool
}

// ChatService runs the send and read pipeline: moderation and media
// checks on the way in, envelope encryption at rest, decryption and
// parsing on the way out.
type ChatService struct {
	messages  repositories.IMessageRepository
	groups    repositories.IGroupRepository
	users     repositories.IUserRepository
	codec     *codec.Codec
	moderator moderation.Moderator
	tracker   *presence.Tracker
	log       *slog.Logger
	now       func() time.Time
}

func NewChatService(
	messages repositories.IMessageRepository,
	groups repositories.IGroupRepository,
	users repositories.IUserRepository,
	c *codec.Codec,
	moderator moderation.Moderator,
	tracker *presence.Tracker,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		messages:  messages,
		groups:    groups,
		users:     users,
		codec:     c,
		moderator: moderator,
		tracker:   tracker,
		log:       log,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (s *ChatService) WithClock(now func() time.Time) *ChatService {
	s.now = now
	return s
}

func (s *ChatService) Send(cmd SendCommand) (domain.DecodedMessage, error) {
	if cmd.IsGroup {
		if err := s.checkGroupPosting(cmd.ReceiverID, cmd.SenderID); err != nil {
			return domain.DecodedMessage{}, err
		}
	}

	content, err := s.buildContent(cmd)
	if err != nil {
		return domain.DecodedMessage{}, err
	}

	msg, err := s.append(cmd.SenderID, cmd.ReceiverID, cmd.IsGroup, content)
	if err != nil {
		return domain.DecodedMessage{}, err
	}
	return domain.DecodedMessage{Message: msg, Content: content}, nil
}

// System appends a synthetic notification to a group feed, attributed to
// the reserved sender.
func (s *ChatService) System(groupID, text string) error {
	content := domain.MessageContent{Type: domain.MessageSystem, Content: text}
	_, err := s.append(domain.SystemSenderID, groupID, true, content)
	return err
}

// Conversation returns the full exchange in timestamp order, decrypted.
// Entries that predate encryption or fail to parse degrade to plain text
// instead of breaking the render.
func (s *ChatService) Conversation(selfID, targetID string, isGroup bool) ([]domain.DecodedMessage, error) {
	stored, err := s.messages.Conversation(selfID, targetID, isGroup)
	if err != nil {
		return nil, err
	}

	return lo.Map(stored, func(msg domain.Message, _ int) domain.DecodedMessage {
		plaintext := s.codec.Decode(msg.Envelope)

		var content domain.MessageContent
		if err := json.Unmarshal([]byte(plaintext), &content); err != nil || content.Type == "" {
			content = domain.MessageContent{Type: domain.MessageText, Content: plaintext}
		}
		return domain.DecodedMessage{Message: msg, Content: content}
	}), nil
}

func (s *ChatService) TypingHeartbeat(chatID, userID string) {
	s.tracker.Heartbeat(chatID, userID)
}

func (s *ChatService) ActiveTypers(chatID, selfID string) []string {
	return s.tracker.ActiveTypers(chatID, selfID)
}

// RecentChats lists every conversation the user can reopen: direct
// partners from the message log plus all group memberships.
func (s *ChatService) RecentChats(userID string) ([]RecentChat, error) {
	partners, err := s.messages.DirectPartners(userID)
	if err != nil {
		return nil, err
	}

	chats := make([]RecentChat, 0, len(partners))
	for _, partnerID := range partners {
		partner, err := s.users.GetByID(partnerID)
		if err == errors.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		chats = append(chats, RecentChat{
			ID:     partner.ID,
			Name:   partner.DisplayName,
			Avatar: partner.Avatar,
		})
	}

	groups, err := s.groups.ListByMember(userID)
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		chats = append(chats, RecentChat{
			ID:      group.ID,
			Name:    group.Name,
			Avatar:  group.Avatar,
			IsGroup: true,
		})
	}
	return chats, nil
}

func (s *ChatService) SearchUsers(query, selfID string) ([]domain.User, error) {
	return s.users.Search(query, selfID)
}

func (s *ChatService) checkGroupPosting(groupID, senderID string) error {
	group, err := s.groups.Get(groupID)
	if err != nil {
		return err
	}
	member, ok := group.Member(senderID)
	if !ok {
		return errors.ErrNotAMember
	}
	if group.Settings.OnlyAdminsCanPost && member.Role == domain.RoleMember {
		return fmt.Errorf("%w: only admins can post in this group", errors.ErrUnauthorized)
	}
	return nil
}

func (s *ChatService) buildContent(cmd SendCommand) (domain.MessageContent, error) {
	switch cmd.Type {
	case domain.MessageText:
		if strings.TrimSpace(cmd.Text) == "" {
			return domain.MessageContent{}, fmt.Errorf("%w: message text is empty", errors.ErrValidation)
		}
		censored, matched := s.moderator.Censor(cmd.Text)
		if len(matched) > 0 {
			s.log.Warn("message censored", "sender_id", cmd.SenderID, "words", len(matched))
		}
		info := whatlanggo.Detect(censored)
		s.log.Debug("text message built",
			"sender_id", cmd.SenderID,
			"lang", info.Lang.String(),
			"confidence", info.Confidence)
		return domain.MessageContent{Type: domain.MessageText, Content: censored}, nil

	case domain.MessageAudio:
		raw, err := base64.StdEncoding.DecodeString(cmd.AudioBase64)
		if err != nil {
			return domain.MessageContent{}, fmt.Errorf("%w: audio payload is not valid base64", errors.ErrValidation)
		}
		kind := mimetype.Detect(raw)
		if !strings.HasPrefix(kind.String(), "audio/") {
			return domain.MessageContent{}, fmt.Errorf("%w: payload is %s, not audio", errors.ErrValidation, kind.String())
		}
		return domain.MessageContent{
			Type:     domain.MessageAudio,
			Content:  cmd.AudioBase64,
			Duration: cmd.Duration,
		}, nil

	default:
		return domain.MessageContent{}, fmt.Errorf("%w: unknown message type %q", errors.ErrValidation, cmd.Type)
	}
}

func (s *ChatService) append(senderID, receiverID string, isGroup bool, content domain.MessageContent) (domain.Message, error) {
	plaintext, err := json.Marshal(content)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to marshal message content: %w", err)
	}

	envelope, err := s.codec.Encode(string(plaintext))
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to encrypt message: %w", err)
	}

	msg := domain.Message{
		ID:             uuid.New().String(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Envelope:       envelope,
		Timestamp:      s.now().UTC(),
		IsGroupMessage: isGroup,
	}
	if err := s.messages.Append(msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}
