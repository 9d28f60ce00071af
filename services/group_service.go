package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"halo-chat/domain"
	"halo-chat/errors"
	"halo-chat/permission"
	"halo-chat/repositories"
	"halo-chat/search"
)

const (
	inviteCodeLength  = 20
	inviteCodeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!#%&*+-=?"
	inviteTTL         = 7 * 24 * time.Hour
)

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,10}$`)

// systemMessenger posts synthetic conversation entries into a group feed.
// Implemented by the chat service, declared here to keep the dependency
// one-directional.
type systemMessenger interface {
	System(groupID, text string) error
}

type IGroupService interface {
	Create(ownerID string, cmd CreateGroupCommand) (domain.Group, error)
	Get(groupID string) (domain.Group, error)
	GenerateInvite(groupID, actorID string) (domain.GroupInvite, error)
	JoinByCode(userID, code string) (domain.Group, error)
	Leave(groupID, userID string) error
	Kick(groupID, actorID, targetID string) error
	Ban(groupID, actorID, targetID string) error
	Promote(groupID, actorID, targetID string) error
	UpdateSettings(groupID, actorID string, patch SettingsPatch) (domain.Group, error)
	PinMessage(groupID, actorID, messageID string) error
	GroupsOf(userID string) ([]domain.Group, error)
	SearchGroups(ctx context.Context, query string, limit int) ([]domain.Group, error)
	ReindexPublicGroups() error
}

type CreateGroupCommand struct {
	Name        string
	Description string
	Avatar      string
	Type        domain.GroupType
	Slug        string
}

// SettingsPatch carries only the settings fields the caller wants to
// change, so an update does not clobber fields it never looked at.
type SettingsPatch struct {
	OnlyAdminsCanPost *bool
}

type GroupService struct {
	groups    repositories.IGroupRepository
	users     repositories.IUserRepository
	index     search.IGroupIndex
	messenger systemMessenger
	log       *slog.Logger
	now       func() time.Time
}

func NewGroupService(
	groups repositories.IGroupRepository,
	users repositories.IUserRepository,
	index search.IGroupIndex,
	messenger systemMessenger,
	log *slog.Logger,
) *GroupService {
	return &GroupService{
		groups:    groups,
		users:     users,
		index:     index,
		messenger: messenger,
		log:       log,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (s *GroupService) WithClock(now func() time.Time) *GroupService {
	s.now = now
	return s
}

func (s *GroupService) Create(ownerID string, cmd CreateGroupCommand) (domain.Group, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return domain.Group{}, fmt.Errorf("%w: group name is empty", errors.ErrValidation)
	}

	switch cmd.Type {
	case domain.GroupPublic:
		if !slugPattern.MatchString(cmd.Slug) {
			return domain.Group{}, fmt.Errorf("%w: %s", errors.ErrInvalidSlug, cmd.Slug)
		}
	case domain.GroupPrivate:
		cmd.Slug = ""
	default:
		return domain.Group{}, fmt.Errorf("%w: unknown group type %q", errors.ErrValidation, cmd.Type)
	}

	group := domain.Group{
		ID:          uuid.New().String(),
		Name:        cmd.Name,
		Description: cmd.Description,
		Avatar:      cmd.Avatar,
		Type:        cmd.Type,
		Slug:        cmd.Slug,
		Members: []domain.GroupMember{{
			UserID:   ownerID,
			Role:     domain.RoleOwner,
			JoinedAt: s.now().UTC(),
		}},
		CreatedAt: s.now().UTC(),
	}

	if err := s.groups.Create(group); err != nil {
		return domain.Group{}, err
	}
	if err := s.index.Index(group); err != nil {
		s.log.Error("failed to index new group", "group_id", group.ID, "error", err)
	}
	s.announce(group.ID, "Group created by owner")
	s.log.Info("group created", "group_id", group.ID, "type", group.Type, "slug", group.Slug)
	return group, nil
}

func (s *GroupService) Get(groupID string) (domain.Group, error) {
	return s.groups.Get(groupID)
}

// GenerateInvite mints a fresh code and replaces any previous one. Only
// owners and admins may invite, the same gate as settings changes.
func (s *GroupService) GenerateInvite(groupID, actorID string) (domain.GroupInvite, error) {
	code, err := randomInviteCode()
	if err != nil {
		return domain.GroupInvite{}, fmt.Errorf("failed to generate invite code: %w", err)
	}

	invite := domain.GroupInvite{
		Code:      code,
		CreatorID: actorID,
		ExpiresAt: s.now().Add(inviteTTL).UTC(),
	}

	_, err = s.groups.Update(groupID, func(g *domain.Group) error {
		if err := permission.Verify(*g, actorID, actorID, permission.ActionMute); err != nil {
			return err
		}
		g.Invite = &invite
		return nil
	})
	if err != nil {
		return domain.GroupInvite{}, err
	}
	s.log.Info("invite generated", "group_id", groupID, "creator_id", actorID)
	return invite, nil
}

// JoinByCode admits a user through an invite code or a public slug.
// Invite codes are tried first, then the code is treated as a slug with
// an optional leading @. Private groups are only reachable by invite.
func (s *GroupService) JoinByCode(userID, code string) (domain.Group, error) {
	viaInvite := true
	group, err := s.groups.GetByInviteCode(code)
	if err == errors.ErrNotFound {
		viaInvite = false
		group, err = s.groups.GetBySlug(strings.TrimPrefix(code, "@"))
	}
	if err != nil {
		return domain.Group{}, err
	}
	if !viaInvite && group.Type != domain.GroupPublic {
		return domain.Group{}, errors.ErrNotFound
	}

	updated, err := s.groups.Update(group.ID, func(g *domain.Group) error {
		if g.IsBanned(userID) {
			return errors.ErrBanned
		}
		if g.IsMember(userID) {
			return errors.ErrAlreadyMember
		}
		if viaInvite && (g.Invite == nil || g.Invite.Code != code || s.now().After(g.Invite.ExpiresAt)) {
			return errors.ErrInviteExpired
		}
		g.Members = append(g.Members, domain.GroupMember{
			UserID:   userID,
			Role:     domain.RoleMember,
			JoinedAt: s.now().UTC(),
		})
		return nil
	})
	if err != nil {
		return domain.Group{}, err
	}

	s.announce(updated.ID, fmt.Sprintf("%s joined the group", s.displayName(userID)))
	s.log.Info("user joined group", "group_id", updated.ID, "user_id", userID, "via_invite", viaInvite)
	return updated, nil
}

// Leave removes the caller from the group. An owner must hand over
// ownership first unless they are the last member standing.
func (s *GroupService) Leave(groupID, userID string) error {
	_, err := s.groups.Update(groupID, func(g *domain.Group) error {
		member, ok := g.Member(userID)
		if !ok {
			return errors.ErrNotAMember
		}
		if member.Role == domain.RoleOwner && len(g.Members) > 1 {
			return errors.ErrOwnerMustTransfer
		}
		g.Members = removeMember(g.Members, userID)
		return nil
	})
	if err != nil {
		return err
	}

	s.announce(groupID, fmt.Sprintf("%s left the group", s.displayName(userID)))
	s.log.Info("user left group", "group_id", groupID, "user_id", userID)
	return nil
}

func (s *GroupService) Kick(groupID, actorID, targetID string) error {
	_, err := s.groups.Update(groupID, func(g *domain.Group) error {
		if err := permission.Verify(*g, actorID, targetID, permission.ActionKick); err != nil {
			return err
		}
		g.Members = removeMember(g.Members, targetID)
		return nil
	})
	if err != nil {
		return err
	}

	s.announce(groupID, fmt.Sprintf("%s was removed from the group", s.displayName(targetID)))
	s.log.Info("member kicked", "group_id", groupID, "actor_id", actorID, "target_id", targetID)
	return nil
}

// Ban kicks the target and blocks them from rejoining, even through a
// freshly generated invite. Re-banning an already banned user succeeds
// without effect.
func (s *GroupService) Ban(groupID, actorID, targetID string) error {
	alreadyBanned := false
	_, err := s.groups.Update(groupID, func(g *domain.Group) error {
		if g.IsBanned(targetID) {
			alreadyBanned = true
			return nil
		}
		if err := permission.Verify(*g, actorID, targetID, permission.ActionBan); err != nil {
			return err
		}
		g.Members = removeMember(g.Members, targetID)
		g.BannedUserIDs = append(g.BannedUserIDs, targetID)
		return nil
	})
	if err != nil {
		return err
	}
	if alreadyBanned {
		return nil
	}

	s.announce(groupID, fmt.Sprintf("%s was banned from the group", s.displayName(targetID)))
	s.log.Info("member banned", "group_id", groupID, "actor_id", actorID, "target_id", targetID)
	return nil
}

func (s *GroupService) Promote(groupID, actorID, targetID string) error {
	_, err := s.groups.Update(groupID, func(g *domain.Group) error {
		if err := permission.Verify(*g, actorID, targetID, permission.ActionPromote); err != nil {
			return err
		}
		for i := range g.Members {
			if g.Members[i].UserID == targetID {
				g.Members[i].Role = domain.RoleAdmin
				return nil
			}
		}
		return errors.ErrTargetNotFound
	})
	if err != nil {
		return err
	}

	s.announce(groupID, fmt.Sprintf("%s is now an admin", s.displayName(targetID)))
	s.log.Info("member promoted", "group_id", groupID, "actor_id", actorID, "target_id", targetID)
	return nil
}

func (s *GroupService) UpdateSettings(groupID, actorID string, patch SettingsPatch) (domain.Group, error) {
	postingFlipped := false
	updated, err := s.groups.Update(groupID, func(g *domain.Group) error {
		if err := permission.Verify(*g, actorID, actorID, permission.ActionMute); err != nil {
			return err
		}
		if patch.OnlyAdminsCanPost != nil && g.Settings.OnlyAdminsCanPost != *patch.OnlyAdminsCanPost {
			g.Settings.OnlyAdminsCanPost = *patch.OnlyAdminsCanPost
			postingFlipped = true
		}
		return nil
	})
	if err != nil {
		return domain.Group{}, err
	}

	if postingFlipped {
		if updated.Settings.OnlyAdminsCanPost {
			s.announce(groupID, "Only admins can post now")
		} else {
			s.announce(groupID, "Everyone can post now")
		}
	}
	return updated, nil
}

// PinMessage sets the pinned message, or clears it when messageID is
// empty. Gated on the admin tier like settings changes.
func (s *GroupService) PinMessage(groupID, actorID, messageID string) error {
	_, err := s.groups.Update(groupID, func(g *domain.Group) error {
		if err := permission.Verify(*g, actorID, actorID, permission.ActionMute); err != nil {
			return err
		}
		g.PinnedMessageID = messageID
		return nil
	})
	if err != nil {
		return err
	}
	if messageID != "" {
		s.announce(groupID, "A message was pinned")
	}
	return nil
}

// ReindexPublicGroups rebuilds the discovery index from the store. Run
// at startup: the bluge index lives beside the database, not inside its
// transactions, so a crash can leave it behind.
func (s *GroupService) ReindexPublicGroups() error {
	groups, err := s.groups.All()
	if err != nil {
		return err
	}

	indexed := 0
	for _, group := range groups {
		if group.Type != domain.GroupPublic {
			continue
		}
		if err := s.index.Index(group); err != nil {
			return err
		}
		indexed++
	}
	s.log.Info("public group index rebuilt", "indexed", indexed)
	return nil
}

func (s *GroupService) GroupsOf(userID string) ([]domain.Group, error) {
	return s.groups.ListByMember(userID)
}

func (s *GroupService) SearchGroups(ctx context.Context, query string, limit int) ([]domain.Group, error) {
	ids, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	groups := make([]domain.Group, 0, len(ids))
	for _, id := range ids {
		group, err := s.groups.Get(id)
		if err == errors.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// ParseJoinCode extracts the joinable token from a raw invite link,
// stripping the <scheme>://join/ prefix and a leading @ when present.
func ParseJoinCode(raw string) string {
	code := strings.TrimSpace(raw)
	if idx := strings.Index(code, "://join/"); idx >= 0 {
		code = code[idx+len("://join/"):]
	}
	return strings.TrimPrefix(code, "@")
}

func (s *GroupService) announce(groupID, text string) {
	if err := s.messenger.System(groupID, text); err != nil {
		s.log.Error("failed to post system message", "group_id", groupID, "error", err)
	}
}

// displayName resolves a user id for system messages, falling back to
// the raw id when the directory cannot resolve it.
func (s *GroupService) displayName(userID string) string {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return userID
	}
	return user.DisplayName
}

func removeMember(members []domain.GroupMember, userID string) []domain.GroupMember {
	return lo.Reject(members, func(m domain.GroupMember, _ int) bool {
		return m.UserID == userID
	})
}

func randomInviteCode() (string, error) {
	code := make([]byte, inviteCodeLength)
	max := big.NewInt(int64(len(inviteCodeCharset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteCodeCharset[n.Int64()]
	}
	return string(code), nil
}
