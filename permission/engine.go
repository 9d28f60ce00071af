// Package permission is the single gate in front of every group
// moderation mutation. It is a pure predicate over a group snapshot:
// no state, no side effects, so callers can evaluate it anywhere
// without risking a partial mutation.
package permission

import (
	"halo-chat/domain"
	"halo-chat/errors"
)

type Action string

const (
	ActionKick    Action = "kick"
	ActionBan     Action = "ban"
	ActionPromote Action = "promote"
	// ActionMute covers group settings changes (posting restrictions,
	// pinning). It has no target: the check is about the actor only.
	ActionMute Action = "mute"
)

// Verify reports whether actorID may apply action to targetID within
// group. The rules are evaluated in a fixed order so callers get the
// most specific denial:
//
//  1. the actor must be a current member
//  2. mute needs owner or admin, target ignored
//  3. the target must be a current member
//  4. plain members may never kick, ban or promote
//  5. admins cannot act on peers or the owner
//  6. the owner may act on anyone
//
// Self-targeting by the owner passes here; rejecting nonsensical
// self-kicks is the caller's concern, not a hierarchy rule.
func Verify(group domain.Group, actorID, targetID string, action Action) error {
	actor, ok := group.Member(actorID)
	if !ok {
		return errors.ErrUnauthorized
	}

	if action == ActionMute {
		if actor.Role != domain.RoleOwner && actor.Role != domain.RoleAdmin {
			return errors.ErrUnauthorized
		}
		return nil
	}

	target, ok := group.Member(targetID)
	if !ok {
		return errors.ErrTargetNotFound
	}

	if actor.Role == domain.RoleMember {
		return errors.ErrUnauthorized
	}

	if actor.Role == domain.RoleAdmin && !actor.Role.Outranks(target.Role) {
		return errors.ErrUnauthorized
	}

	return nil
}
