package repositories

import (
	"time"

	"github.com/fxamacker/cbor/v2"

	"halo-chat/domain"
)

// Storage records are encoded with CBOR Core Deterministic Encoding:
// same logical data always produces identical bytes, which keeps badger
// values comparable and diffs in the inspector stable. Unknown fields are
// ignored on decode for forward compatibility.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("repositories: CBOR encoder initialization failed: " + err.Error())
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("repositories: CBOR decoder initialization failed: " + err.Error())
	}
}

// userRecord is the stored shape of an account. It is the only place the
// password hash lives; the domain User never carries it.
type userRecord struct {
	ID           string `cbor:"id"`
	Username     string `cbor:"username"`
	DisplayName  string `cbor:"display_name"`
	Email        string `cbor:"email"`
	PasswordHash string `cbor:"password_hash"`
	Avatar       string `cbor:"avatar"`
	Bio          string `cbor:"bio"`
	NameColor    string `cbor:"name_color"`
	CreatedAt    int64  `cbor:"created_at"`
	LastSeen     int64  `cbor:"last_seen"`
}

func toUserRecord(user domain.User, passwordHash string) userRecord {
	return userRecord{
		ID:           user.ID,
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		Email:        user.Email,
		PasswordHash: passwordHash,
		Avatar:       user.Avatar,
		Bio:          user.Bio,
		NameColor:    user.NameColor,
		CreatedAt:    user.CreatedAt.UnixNano(),
		LastSeen:     user.LastSeen.UnixNano(),
	}
}

func toUser(rec userRecord) domain.User {
	return domain.User{
		ID:          rec.ID,
		Username:    rec.Username,
		DisplayName: rec.DisplayName,
		Email:       rec.Email,
		Avatar:      rec.Avatar,
		Bio:         rec.Bio,
		NameColor:   rec.NameColor,
		CreatedAt:   time.Unix(0, rec.CreatedAt).UTC(),
		LastSeen:    time.Unix(0, rec.LastSeen).UTC(),
	}
}

type memberRecord struct {
	UserID   string `cbor:"user_id"`
	Role     string `cbor:"role"`
	JoinedAt int64  `cbor:"joined_at"`
}

type inviteRecord struct {
	Code      string `cbor:"code"`
	CreatorID string `cbor:"creator_id"`
	ExpiresAt int64  `cbor:"expires_at"`
}

type groupRecord struct {
	ID                string         `cbor:"id"`
	Name              string         `cbor:"name"`
	Description       string         `cbor:"description"`
	Avatar            string         `cbor:"avatar"`
	Type              string         `cbor:"type"`
	Slug              string         `cbor:"slug,omitempty"`
	Members           []memberRecord `cbor:"members"`
	BannedUserIDs     []string       `cbor:"banned_user_ids"`
	OnlyAdminsCanPost bool           `cbor:"only_admins_can_post"`
	PinnedMessageID   string         `cbor:"pinned_message_id,omitempty"`
	Invite            *inviteRecord  `cbor:"invite,omitempty"`
	CreatedAt         int64          `cbor:"created_at"`
}

func toGroupRecord(group domain.Group) groupRecord {
	rec := groupRecord{
		ID:                group.ID,
		Name:              group.Name,
		Description:       group.Description,
		Avatar:            group.Avatar,
		Type:              string(group.Type),
		Slug:              group.Slug,
		BannedUserIDs:     group.BannedUserIDs,
		OnlyAdminsCanPost: group.Settings.OnlyAdminsCanPost,
		PinnedMessageID:   group.PinnedMessageID,
		CreatedAt:         group.CreatedAt.UnixNano(),
	}
	for _, m := range group.Members {
		rec.Members = append(rec.Members, memberRecord{
			UserID:   m.UserID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt.UnixNano(),
		})
	}
	if group.Invite != nil {
		rec.Invite = &inviteRecord{
			Code:      group.Invite.Code,
			CreatorID: group.Invite.CreatorID,
			ExpiresAt: group.Invite.ExpiresAt.UnixNano(),
		}
	}
	return rec
}

func toGroup(rec groupRecord) domain.Group {
	group := domain.Group{
		ID:              rec.ID,
		Name:            rec.Name,
		Description:     rec.Description,
		Avatar:          rec.Avatar,
		Type:            domain.GroupType(rec.Type),
		Slug:            rec.Slug,
		BannedUserIDs:   rec.BannedUserIDs,
		Settings:        domain.GroupSettings{OnlyAdminsCanPost: rec.OnlyAdminsCanPost},
		PinnedMessageID: rec.PinnedMessageID,
		CreatedAt:       time.Unix(0, rec.CreatedAt).UTC(),
	}
	for _, m := range rec.Members {
		group.Members = append(group.Members, domain.GroupMember{
			UserID:   m.UserID,
			Role:     domain.Role(m.Role),
			JoinedAt: time.Unix(0, m.JoinedAt).UTC(),
		})
	}
	if rec.Invite != nil {
		group.Invite = &domain.GroupInvite{
			Code:      rec.Invite.Code,
			CreatorID: rec.Invite.CreatorID,
			ExpiresAt: time.Unix(0, rec.Invite.ExpiresAt).UTC(),
		}
	}
	return group
}

type messageRecord struct {
	ID             string `cbor:"id"`
	SenderID       string `cbor:"sender_id"`
	ReceiverID     string `cbor:"receiver_id"`
	Envelope       string `cbor:"envelope"`
	Timestamp      int64  `cbor:"timestamp"`
	IsGroupMessage bool   `cbor:"is_group_message"`
}

func toMessageRecord(msg domain.Message) messageRecord {
	return messageRecord{
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Envelope:       msg.Envelope,
		Timestamp:      msg.Timestamp.UnixNano(),
		IsGroupMessage: msg.IsGroupMessage,
	}
}

func toMessage(rec messageRecord) domain.Message {
	return domain.Message{
		ID:             rec.ID,
		SenderID:       rec.SenderID,
		ReceiverID:     rec.ReceiverID,
		Envelope:       rec.Envelope,
		Timestamp:      time.Unix(0, rec.Timestamp).UTC(),
		IsGroupMessage: rec.IsGroupMessage,
	}
}
