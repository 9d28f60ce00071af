package e2e

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"halo-chat/auth"
	"halo-chat/codec"
	"halo-chat/domain"
	"halo-chat/moderation"
	"halo-chat/notify"
	"halo-chat/presence"
	"halo-chat/repositories"
	"halo-chat/search"
	"halo-chat/services"
)

// BaseSuite boots the full service stack in-process on an in-memory
// store, so every scenario exercises the real registration, messaging
// and moderation pipelines end to end without a network hop.
type BaseSuite struct {
	suite.Suite
	Config Config

	Auth  services.IAuthService
	Chat  services.IChatService
	Group services.IGroupService
	Admin services.IAdminService

	Users    repositories.IUserRepository
	Messages repositories.IMessageRepository

	log   *slog.Logger
	db    *badger.DB
	index *bluge.Writer
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.log = logs.GetLoggerFromString(s.Config.LogLevel)
}

// SetupTest rebuilds the whole stack so scenarios never see each
// other's data.
func (s *BaseSuite) SetupTest() {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	s.Require().NoError(err)
	s.db = db

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(s.T().TempDir()))
	s.Require().NoError(err)
	s.index = writer

	users := repositories.NewUserRepository(db)
	groups := repositories.NewGroupRepository(db)
	messages := repositories.NewMessageRepository(db)
	s.Users = users
	s.Messages = messages

	enc, err := codec.New("e2e-passphrase", "e2e-salt", s.Config.CodecIterations)
	s.Require().NoError(err)

	moderator, err := moderation.NewModerator([]string{"bigot"}, '*', s.log)
	s.Require().NoError(err)

	tracker := presence.NewTracker(3*time.Second, 10*time.Second)
	issuer := auth.NewTokenIssuer("e2e-secret", time.Hour)

	chat := services.NewChatService(messages, groups, users, enc, moderator, tracker, s.log)
	s.Chat = chat
	s.Group = services.NewGroupService(groups, users, search.NewGroupIndex(writer, s.log), chat, s.log)
	s.Auth = services.NewAuthService(users, issuer, &notify.LogNotifier{Log: s.log}, s.Config.Operators, s.log)
	s.Admin = services.NewAdminService(users, groups, messages, issuer, s.log)
}

func (s *BaseSuite) TearDownTest() {
	if s.index != nil {
		s.Require().NoError(s.index.Close())
	}
	if s.db != nil {
		s.Require().NoError(s.db.Close())
	}
}

// Step prints a colorized header so scenario phases stand out in logs.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// RegisterUser creates an account with a throwaway strong password and
// returns the stored profile.
func (s *BaseSuite) RegisterUser(username string) domain.User {
	user, token, err := s.Auth.Register(services.RegisterCommand{
		Username:    username,
		DisplayName: username,
		Email:       username + "@halo.test",
		Password:    "Corr3ct#HorseBattery",
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(token)
	return user
}

// DumpConversation logs a decoded feed when E2E_DUMP_MESSAGES is set.
func (s *BaseSuite) DumpConversation(selfID, targetID string, isGroup bool) {
	if !s.Config.DumpMessages {
		return
	}
	feed, err := s.Chat.Conversation(selfID, targetID, isGroup)
	s.Require().NoError(err)
	for _, msg := range feed {
		s.T().Logf("[%s] %s: %s", msg.Timestamp.Format(time.TimeOnly), msg.SenderID, msg.Content.Content)
	}
}
