package domain

import (
	"time"

	"github.com/samber/lo"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// roleRank gives the total order owner > admin > member used by the
// permission engine.
var roleRank = map[Role]int{
	RoleOwner:  3,
	RoleAdmin:  2,
	RoleMember: 1,
}

// Outranks reports whether r is strictly above other in the hierarchy.
func (r Role) Outranks(other Role) bool {
	return roleRank[r] > roleRank[other]
}

type GroupType string

const (
	GroupPublic  GroupType = "public"
	GroupPrivate GroupType = "private"
)

type GroupMember struct {
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// GroupInvite is the single active invite of a group. Regenerating an
// invite replaces it wholesale, so expired or superseded codes simply
// stop matching.
type GroupInvite struct {
	Code      string
	CreatorID string
	ExpiresAt time.Time
}

type GroupSettings struct {
	OnlyAdminsCanPost bool
}

type Group struct {
	ID              string
	Name            string
	Description     string
	Avatar          string
	Type            GroupType
	Slug            string // present iff Type == GroupPublic
	Members         []GroupMember
	BannedUserIDs   []string
	Settings        GroupSettings
	PinnedMessageID string
	Invite          *GroupInvite
	CreatedAt       time.Time
}

// Member returns the membership row of userID, if any.
func (g Group) Member(userID string) (GroupMember, bool) {
	return lo.Find(g.Members, func(m GroupMember) bool {
		return m.UserID == userID
	})
}

func (g Group) IsMember(userID string) bool {
	_, ok := g.Member(userID)
	return ok
}

func (g Group) IsBanned(userID string) bool {
	return lo.Contains(g.BannedUserIDs, userID)
}
