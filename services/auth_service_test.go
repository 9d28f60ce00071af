package services

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"halo-chat/auth"
	"halo-chat/errors"
	"halo-chat/mocks"
	"halo-chat/repositories"
)

// fakeNotifier records the codes it was asked to deliver.
type fakeNotifier struct {
	mu       sync.Mutex
	lastCode string
	sent     int
}

func (n *fakeNotifier) SendVerificationCode(_, _, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastCode = code
	n.sent++
	return nil
}

func newAuthFixture(t *testing.T, operators []string) (*AuthService, *fakeNotifier) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	notifier := &fakeNotifier{}
	service := NewAuthService(
		repositories.NewUserRepository(db),
		auth.NewTokenIssuer("test-secret", time.Hour),
		notifier,
		operators,
		logs.GetLoggerFromLevel(slog.LevelError),
	)
	return service, notifier
}

func registerCommand(username, email string) RegisterCommand {
	return RegisterCommand{
		Username:    username,
		DisplayName: "The " + username,
		Email:       email,
		Password:    "ComplexPass123!",
	}
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	req := require.New(t)
	service, _ := newAuthFixture(t, nil)

	user, token, err := service.Register(registerCommand("alice", "alice@example.com"))
	req.NoError(err)
	req.NotEmpty(user.ID)
	req.NotEmpty(token)

	claims, err := service.Validate(string(token))
	req.NoError(err)
	req.Equal(user.ID, claims.UserID)
	req.False(claims.HasRole(auth.RoleOperator))

	// Login works with the username and with the email.
	for _, login := range []string{"alice", "ALICE", "alice@example.com"} {
		logged, _, err := service.Login(login, "ComplexPass123!")
		req.NoError(err, login)
		req.Equal(user.ID, logged.ID)
	}

	_, _, err = service.Login("alice", "WrongPassword1!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
	_, _, err = service.Login("nobody", "ComplexPass123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestAuthService_RegisterRejectsDuplicates(t *testing.T) {
	req := require.New(t)
	service, _ := newAuthFixture(t, nil)

	_, _, err := service.Register(registerCommand("alice", "alice@example.com"))
	req.NoError(err)

	_, _, err = service.Register(registerCommand("Alice", "other@example.com"))
	req.ErrorIs(err, errors.ErrUsernameTaken)

	_, _, err = service.Register(registerCommand("bob", "ALICE@example.com"))
	req.ErrorIs(err, errors.ErrEmailTaken)

	req.NoError(service.CheckAvailability("carol", "carol@example.com"))
	req.ErrorIs(service.CheckAvailability("alice", "carol@example.com"), errors.ErrUsernameTaken)
}

func TestAuthService_RegisterRejectsWeakPassword(t *testing.T) {
	req := require.New(t)
	service, _ := newAuthFixture(t, nil)

	cmd := registerCommand("alice", "alice@example.com")
	cmd.Password = "alllowercase1234"
	_, _, err := service.Register(cmd)
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func TestAuthService_OperatorRoleComesFromConfiguration(t *testing.T) {
	req := require.New(t)
	service, _ := newAuthFixture(t, []string{"root"})

	_, token, err := service.Register(registerCommand("root", "root@example.com"))
	req.NoError(err)

	claims, err := service.Validate(string(token))
	req.NoError(err)
	req.True(claims.HasRole(auth.RoleOperator))

	_, token, err = service.Register(registerCommand("alice", "alice@example.com"))
	req.NoError(err)
	claims, err = service.Validate(string(token))
	req.NoError(err)
	req.False(claims.HasRole(auth.RoleOperator))
}

func TestAuthService_VerificationFlow(t *testing.T) {
	req := require.New(t)
	service, notifier := newAuthFixture(t, nil)

	req.NoError(service.RequestVerification("alice@example.com", "alice"))
	req.Equal(1, notifier.sent)
	req.Len(notifier.lastCode, verificationCodeLength)

	req.ErrorIs(service.ConfirmVerification("alice@example.com", "000000"), errors.ErrValidation)
	req.NoError(service.ConfirmVerification("alice@example.com", notifier.lastCode))

	// A code is single use.
	req.ErrorIs(service.ConfirmVerification("alice@example.com", notifier.lastCode), errors.ErrValidation)
}

func TestAuthService_VerificationCodeExpires(t *testing.T) {
	req := require.New(t)
	service, notifier := newAuthFixture(t, nil)

	current := time.Now().UTC()
	service.WithClock(func() time.Time { return current })

	req.NoError(service.RequestVerification("alice@example.com", "alice"))
	current = current.Add(verificationCodeTTL + time.Minute)
	req.ErrorIs(service.ConfirmVerification("alice@example.com", notifier.lastCode), errors.ErrValidation)
}

func TestAuthService_DeliveryFailureSurfaces(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().
		SendVerificationCode("alice@example.com", "alice", gomock.Any()).
		Return(fmt.Errorf("%w: smtp refused", errors.ErrDeliveryFailed))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	service := NewAuthService(
		repositories.NewUserRepository(db),
		auth.NewTokenIssuer("test-secret", time.Hour),
		notifier,
		nil,
		logs.GetLoggerFromLevel(slog.LevelError),
	)

	err = service.RequestVerification("alice@example.com", "alice")
	req.ErrorIs(err, errors.ErrDeliveryFailed)

	// Nothing pending after a failed delivery, whatever code the user
	// types is rejected.
	req.ErrorIs(service.ConfirmVerification("alice@example.com", "123456"), errors.ErrValidation)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	req := require.New(t)
	service, _ := newAuthFixture(t, nil)

	user, _, err := service.Register(registerCommand("alice", "alice@example.com"))
	req.NoError(err)

	name := "Alice in Prod"
	bio := "I ship on Fridays"
	color := "#ff8800"
	updated, err := service.UpdateProfile(user.ID, ProfilePatch{
		DisplayName: &name,
		Bio:         &bio,
		NameColor:   &color,
	})
	req.NoError(err)
	req.Equal(name, updated.DisplayName)
	req.Equal(bio, updated.Bio)
	req.Equal(color, updated.NameColor)
	req.Equal("alice", updated.Username)

	bad := "chartreuse"
	_, err = service.UpdateProfile(user.ID, ProfilePatch{NameColor: &bad})
	req.ErrorIs(err, errors.ErrValidation)
}
