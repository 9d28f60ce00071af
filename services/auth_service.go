package services

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/samber/lo"

	"halo-chat/auth"
	"halo-chat/domain"
	"halo-chat/errors"
	"halo-chat/notify"
	"halo-chat/repositories"
)

const (
	verificationCodeLength = 6
	verificationCodeTTL    = 15 * time.Minute
)

type IAuthService interface {
	Register(cmd RegisterCommand) (domain.User, Token, error)
	Login(login, password string) (domain.User, Token, error)
	CheckAvailability(username, email string) error
	RequestVerification(email, username string) error
	ConfirmVerification(email, code string) error
	UpdateProfile(userID string, patch ProfilePatch) (domain.User, error)
	Heartbeat(userID string) error
	Validate(token string) (*auth.Claims, error)
}

type Token string

type RegisterCommand struct {
	Username    string
	DisplayName string
	Email       string
	Password    string
	Avatar      string
	NameColor   string
}

// ProfilePatch carries only the profile fields the caller wants to
// change. Username and email are immutable after registration.
type ProfilePatch struct {
	DisplayName *string
	Avatar      *string
	Bio         *string
	NameColor   *string
}

type pendingCode struct {
	code      string
	expiresAt time.Time
}

type AuthService struct {
	users    repositories.IUserRepository
	issuer   auth.TokenIssuer
	notifier notify.Notifier
	// operators holds the usernames granted the operator role at login,
	// loaded from configuration.
	operators map[string]struct{}
	log       *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]pendingCode
}

func NewAuthService(
	users repositories.IUserRepository,
	issuer auth.TokenIssuer,
	notifier notify.Notifier,
	operators []string,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		issuer:   issuer,
		notifier: notifier,
		operators: lo.SliceToMap(operators, func(name string) (string, struct{}) {
			return name, struct{}{}
		}),
		log:     log,
		now:     time.Now,
		pending: make(map[string]pendingCode),
	}
}

// WithClock replaces the time source. Test hook.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) Register(cmd RegisterCommand) (domain.User, Token, error) {
	request := auth.RegisterRequest{
		Username:    cmd.Username,
		DisplayName: cmd.DisplayName,
		Email:       cmd.Email,
		Password:    cmd.Password,
		NameColor:   cmd.NameColor,
	}
	// Validation runs before any expensive hashing.
	if err := auth.ValidateRegister(request); err != nil {
		return domain.User{}, "", err
	}

	hash, err := auth.HashPassword(cmd.Password, auth.DefaultArgon2Params)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.Create(domain.User{
		Username:    cmd.Username,
		DisplayName: cmd.DisplayName,
		Email:       cmd.Email,
		Avatar:      cmd.Avatar,
		NameColor:   cmd.NameColor,
		CreatedAt:   s.now().UTC(),
		LastSeen:    s.now().UTC(),
	}, hash)
	if err != nil {
		return domain.User{}, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return domain.User{}, "", err
	}
	s.log.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, token, nil
}

func (s *AuthService) Login(login, password string) (domain.User, Token, error) {
	user, hash, err := s.users.GetByLogin(login)
	if err != nil {
		// Same error for unknown login and bad password, so the response
		// cannot be used to enumerate accounts.
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, hash)
	if err != nil || !match {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return domain.User{}, "", err
	}

	if err := s.users.Heartbeat(user.ID, s.now().UTC()); err != nil {
		s.log.Warn("failed to record login heartbeat", "user_id", user.ID, "error", err)
	}
	s.log.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

func (s *AuthService) CheckAvailability(username, email string) error {
	return s.users.CheckAvailability(username, email)
}

// RequestVerification mails a one-time code to the address. Delivery
// failures surface as ErrDeliveryFailed so the caller can offer a retry
// without re-validating the rest of the form.
func (s *AuthService) RequestVerification(email, username string) error {
	code, err := randomDigits(verificationCodeLength)
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}

	if err := s.notifier.SendVerificationCode(email, username, code); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending[email] = pendingCode{code: code, expiresAt: s.now().Add(verificationCodeTTL)}
	s.mu.Unlock()
	return nil
}

func (s *AuthService) ConfirmVerification(email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[email]
	if !ok || pending.code != code {
		return fmt.Errorf("%w: verification code does not match", errors.ErrValidation)
	}
	if s.now().After(pending.expiresAt) {
		delete(s.pending, email)
		return fmt.Errorf("%w: verification code expired", errors.ErrValidation)
	}
	delete(s.pending, email)
	return nil
}

func (s *AuthService) UpdateProfile(userID string, patch ProfilePatch) (domain.User, error) {
	if patch.NameColor != nil && *patch.NameColor != "" && !auth.ValidNameColor(*patch.NameColor) {
		return domain.User{}, fmt.Errorf("%w: invalid name color", errors.ErrValidation)
	}

	return s.users.Update(userID, func(u *domain.User) error {
		if patch.DisplayName != nil {
			u.DisplayName = *patch.DisplayName
		}
		if patch.Avatar != nil {
			u.Avatar = *patch.Avatar
		}
		if patch.Bio != nil {
			u.Bio = *patch.Bio
		}
		if patch.NameColor != nil {
			u.NameColor = *patch.NameColor
		}
		return nil
	})
}

func (s *AuthService) Heartbeat(userID string) error {
	return s.users.Heartbeat(userID, s.now().UTC())
}

func (s *AuthService) Validate(token string) (*auth.Claims, error) {
	return s.issuer.Validate(token)
}

func (s *AuthService) issueToken(user domain.User) (Token, error) {
	roles := []string{"user"}
	if _, ok := s.operators[user.Username]; ok {
		roles = append(roles, auth.RoleOperator)
	}

	token, err := s.issuer.Issue(user.ID, roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}
