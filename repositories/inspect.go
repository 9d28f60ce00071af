package repositories

import (
	"fmt"
	"strings"

	"halo-chat/domain"
)

// DecodeUser decodes a stored user value for inspection tooling. The
// password hash stays behind the repository boundary.
func DecodeUser(val []byte) (domain.User, error) {
	var rec userRecord
	if err := decMode.Unmarshal(val, &rec); err != nil {
		return domain.User{}, err
	}
	return toUser(rec), nil
}

func DecodeGroup(val []byte) (domain.Group, error) {
	var rec groupRecord
	if err := decMode.Unmarshal(val, &rec); err != nil {
		return domain.Group{}, err
	}
	return toGroup(rec), nil
}

func DecodeMessage(val []byte) (domain.Message, error) {
	var rec messageRecord
	if err := decMode.Unmarshal(val, &rec); err != nil {
		return domain.Message{}, err
	}
	return toMessage(rec), nil
}

// Describe renders one stored key/value pair as a human readable line,
// dispatching on the key prefix.
func Describe(key string, val []byte) string {
	switch {
	case strings.HasPrefix(key, "user:id:"):
		user, err := DecodeUser(val)
		if err != nil {
			return fmt.Sprintf("user <corrupt: %v>", err)
		}
		return fmt.Sprintf("user %s <%s> last seen %s",
			user.Username, user.Email, user.LastSeen.Format("2006-01-02 15:04:05"))

	case strings.HasPrefix(key, "group:id:"):
		group, err := DecodeGroup(val)
		if err != nil {
			return fmt.Sprintf("group <corrupt: %v>", err)
		}
		return fmt.Sprintf("group %q (%s) %d members, %d banned",
			group.Name, group.Type, len(group.Members), len(group.BannedUserIDs))

	case strings.HasPrefix(key, "msg:"):
		msg, err := DecodeMessage(val)
		if err != nil {
			return fmt.Sprintf("message <corrupt: %v>", err)
		}
		return fmt.Sprintf("message %s from %s at %s (%d bytes sealed)",
			msg.ID, msg.SenderID, msg.Timestamp.Format("15:04:05"), len(msg.Envelope))

	default:
		// Index keys store the target id as their value.
		return string(val)
	}
}
