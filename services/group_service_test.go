package services

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"halo-chat/domain"
	"halo-chat/errors"
	"halo-chat/repositories"
	"halo-chat/search"
)

// recordingMessenger captures system messages instead of persisting them.
type recordingMessenger struct {
	mu    sync.Mutex
	posts []string
}

func (r *recordingMessenger) System(_, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, text)
	return nil
}

func (r *recordingMessenger) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.posts...)
}

type groupFixture struct {
	service   *GroupService
	groups    repositories.IGroupRepository
	users     repositories.IUserRepository
	messenger *recordingMessenger
}

func newGroupFixture(t *testing.T) *groupFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelError)
	groups := repositories.NewGroupRepository(db)
	users := repositories.NewUserRepository(db)
	messenger := &recordingMessenger{}
	service := NewGroupService(groups, users, search.NewGroupIndex(writer, log), messenger, log)

	return &groupFixture{service: service, groups: groups, users: users, messenger: messenger}
}

func (f *groupFixture) createPublic(t *testing.T, ownerID, name, slug string) domain.Group {
	t.Helper()
	group, err := f.service.Create(ownerID, CreateGroupCommand{
		Name: name,
		Type: domain.GroupPublic,
		Slug: slug,
	})
	require.NoError(t, err)
	return group
}

func TestGroupService_CreateValidation(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	_, err := f.service.Create("owner", CreateGroupCommand{Name: "  ", Type: domain.GroupPublic, Slug: "devs"})
	req.ErrorIs(err, errors.ErrValidation)

	for _, slug := range []string{"ab", "waytoolongslug", "has space", "bad-slug", ""} {
		_, err = f.service.Create("owner", CreateGroupCommand{Name: "Devs", Type: domain.GroupPublic, Slug: slug})
		req.ErrorIs(err, errors.ErrInvalidSlug, "slug=%q", slug)
	}

	f.createPublic(t, "owner", "Devs", "devs")
	_, err = f.service.Create("other", CreateGroupCommand{Name: "Devs2", Type: domain.GroupPublic, Slug: "DEVS"})
	req.ErrorIs(err, errors.ErrSlugTaken)
}

func TestGroupService_JoinBySlug(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	group := f.createPublic(t, "owner", "Devs", "devs")

	joined, err := f.service.JoinByCode("bob", "@devs")
	req.NoError(err)
	req.Equal(group.ID, joined.ID)
	req.True(joined.IsMember("bob"))

	member, ok := joined.Member("bob")
	req.True(ok)
	req.Equal(domain.RoleMember, member.Role)

	_, err = f.service.JoinByCode("bob", "devs")
	req.ErrorIs(err, errors.ErrAlreadyMember)
}

func TestGroupService_PrivateGroupUnreachableBySlug(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	_, err := f.service.Create("owner", CreateGroupCommand{Name: "Lair", Type: domain.GroupPrivate})
	req.NoError(err)

	_, err = f.service.JoinByCode("bob", "lair")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestGroupService_JoinByInvite(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	group, err := f.service.Create("owner", CreateGroupCommand{Name: "Lair", Type: domain.GroupPrivate})
	req.NoError(err)

	invite, err := f.service.GenerateInvite(group.ID, "owner")
	req.NoError(err)
	req.Len(invite.Code, inviteCodeLength)

	joined, err := f.service.JoinByCode("bob", invite.Code)
	req.NoError(err)
	req.True(joined.IsMember("bob"))
}

func TestGroupService_InviteExpiry(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	current := time.Now().UTC()
	f.service.WithClock(func() time.Time { return current })

	group := f.createPublic(t, "owner", "Devs", "devs")
	invite, err := f.service.GenerateInvite(group.ID, "owner")
	req.NoError(err)

	// One hour past the seven day window the code still matches but no
	// longer admits anyone.
	current = current.Add(inviteTTL + time.Hour)
	_, err = f.service.JoinByCode("bob", invite.Code)
	req.ErrorIs(err, errors.ErrInviteExpired)

	// The slug path stays open, expiry only kills the invite.
	joined, err := f.service.JoinByCode("bob", "@devs")
	req.NoError(err)
	req.True(joined.IsMember("bob"))
}

func TestGroupService_BanIsStickyAcrossNewInvites(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	group := f.createPublic(t, "owner", "Devs", "devs")
	_, err := f.service.JoinByCode("bob", "devs")
	req.NoError(err)

	req.NoError(f.service.Ban(group.ID, "owner", "bob"))

	fetched, err := f.groups.Get(group.ID)
	req.NoError(err)
	req.False(fetched.IsMember("bob"))
	req.True(fetched.IsBanned("bob"))

	// A brand new invite does not lift the ban.
	invite, err := f.service.GenerateInvite(group.ID, "owner")
	req.NoError(err)
	_, err = f.service.JoinByCode("bob", invite.Code)
	req.ErrorIs(err, errors.ErrBanned)
	_, err = f.service.JoinByCode("bob", "@devs")
	req.ErrorIs(err, errors.ErrBanned)

	// Re-banning is a no-op, not an error.
	req.NoError(f.service.Ban(group.ID, "owner", "bob"))
}

func TestGroupService_KickIsNotABan(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	group := f.createPublic(t, "owner", "Devs", "devs")
	_, err := f.service.JoinByCode("bob", "devs")
	req.NoError(err)

	req.NoError(f.service.Kick(group.ID, "owner", "bob"))

	fetched, err := f.groups.Get(group.ID)
	req.NoError(err)
	req.Len(fetched.Members, 1)

	rejoined, err := f.service.JoinByCode("bob", "devs")
	req.NoError(err)
	member, ok := rejoined.Member("bob")
	req.True(ok)
	req.Equal(domain.RoleMember, member.Role)
}

func TestGroupService_OwnerDeparture(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	group := f.createPublic(t, "owner", "Devs", "devs")
	_, err := f.service.JoinByCode("bob", "devs")
	req.NoError(err)

	req.ErrorIs(f.service.Leave(group.ID, "owner"), errors.ErrOwnerMustTransfer)
	req.ErrorIs(f.service.Leave(group.ID, "carol"), errors.ErrNotAMember)

	// Once bob is gone the sole owner may depart, leaving the group
	// empty but intact.
	req.NoError(f.service.Leave(group.ID, "bob"))
	req.NoError(f.service.Leave(group.ID, "owner"))

	fetched, err := f.groups.Get(group.ID)
	req.NoError(err)
	req.Empty(fetched.Members)
}

func TestGroupService_PromoteAndRoleGates(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	group := f.createPublic(t, "owner", "Devs", "devs")
	_, err := f.service.JoinByCode("bob", "devs")
	req.NoError(err)

	req.NoError(f.service.Promote(group.ID, "owner", "bob"))
	fetched, err := f.groups.Get(group.ID)
	req.NoError(err)
	member, _ := fetched.Member("bob")
	req.Equal(domain.RoleAdmin, member.Role)

	// An admin cannot act on the owner.
	req.ErrorIs(f.service.Kick(group.ID, "bob", "owner"), errors.ErrUnauthorized)

	req.ErrorIs(f.service.Promote(group.ID, "owner", "ghost"), errors.ErrTargetNotFound)
}

func TestGroupService_InviteRequiresElevatedRole(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	group := f.createPublic(t, "owner", "Devs", "devs")
	_, err := f.service.JoinByCode("bob", "devs")
	req.NoError(err)

	_, err = f.service.GenerateInvite(group.ID, "bob")
	req.ErrorIs(err, errors.ErrUnauthorized)
	_, err = f.service.GenerateInvite(group.ID, "stranger")
	req.ErrorIs(err, errors.ErrUnauthorized)
}

func TestGroupService_UpdateSettingsAnnouncesFlip(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	group := f.createPublic(t, "owner", "Devs", "devs")
	_, err := f.service.JoinByCode("bob", "devs")
	req.NoError(err)

	_, err = f.service.UpdateSettings(group.ID, "bob", SettingsPatch{OnlyAdminsCanPost: boolPtr(true)})
	req.ErrorIs(err, errors.ErrUnauthorized)

	before := len(f.messenger.all())
	updated, err := f.service.UpdateSettings(group.ID, "owner", SettingsPatch{OnlyAdminsCanPost: boolPtr(true)})
	req.NoError(err)
	req.True(updated.Settings.OnlyAdminsCanPost)
	req.Len(f.messenger.all(), before+1)

	// Setting the same value again announces nothing.
	_, err = f.service.UpdateSettings(group.ID, "owner", SettingsPatch{OnlyAdminsCanPost: boolPtr(true)})
	req.NoError(err)
	req.Len(f.messenger.all(), before+1)
}

func TestGroupService_PinMessageIsRoleGated(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	group := f.createPublic(t, "owner", "Devs", "devs")
	_, err := f.service.JoinByCode("bob", "devs")
	req.NoError(err)

	req.ErrorIs(f.service.PinMessage(group.ID, "bob", "msg-1"), errors.ErrUnauthorized)
	posted := len(f.messenger.all())
	req.NoError(f.service.PinMessage(group.ID, "owner", "msg-1"))

	fetched, err := f.groups.Get(group.ID)
	req.NoError(err)
	req.Equal("msg-1", fetched.PinnedMessageID)
	posts := f.messenger.all()
	req.Len(posts, posted+1)
	req.Equal("A message was pinned", posts[len(posts)-1])

	// Clearing the pin goes through the same gate and is silent.
	req.NoError(f.service.PinMessage(group.ID, "owner", ""))
	fetched, err = f.groups.Get(group.ID)
	req.NoError(err)
	req.Empty(fetched.PinnedMessageID)
	req.Len(f.messenger.all(), posted+1)
}

func TestGroupService_MembershipChangesEmitSystemMessages(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)

	group := f.createPublic(t, "owner", "Devs", "devs")
	_, err := f.service.JoinByCode("bob", "devs")
	req.NoError(err)
	req.NoError(f.service.Promote(group.ID, "owner", "bob"))
	req.NoError(f.service.Kick(group.ID, "owner", "bob"))

	posts := f.messenger.all()
	req.Len(posts, 4)
	req.Equal("Group created by owner", posts[0])
	req.Contains(posts[1], "joined")
	req.Contains(posts[2], "admin")
	req.Contains(posts[3], "removed")
}

func TestParseJoinCode(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		raw      string
		expected string
	}{
		{"halo://join/@devs", "devs"},
		{"halo://join/aB3!xY9#kL2%mN5&pQ8*", "aB3!xY9#kL2%mN5&pQ8*"},
		{"@devs", "devs"},
		{"devs", "devs"},
		{"  halo://join/devs  ", "devs"},
	}
	for _, tt := range tests {
		req.Equal(tt.expected, ParseJoinCode(tt.raw), tt.raw)
	}
}

func boolPtr(b bool) *bool { return &b }
