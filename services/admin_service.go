package services

import (
	"fmt"
	"log/slog"

	"halo-chat/auth"
	"halo-chat/errors"
	"halo-chat/repositories"
)

// InstanceStats is the operator-facing snapshot of stored volumes.
type InstanceStats struct {
	Users    int
	Groups   int
	Messages int
}

type IAdminService interface {
	Stats(token string) (InstanceStats, error)
}

// AdminService exposes instance-wide numbers to accounts holding the
// operator role. Authorization rides on the token claims, there is no
// hardcoded superuser account.
type AdminService struct {
	users    repositories.IUserRepository
	groups   repositories.IGroupRepository
	messages repositories.IMessageRepository
	issuer   auth.TokenIssuer
	log      *slog.Logger
}

func NewAdminService(
	users repositories.IUserRepository,
	groups repositories.IGroupRepository,
	messages repositories.IMessageRepository,
	issuer auth.TokenIssuer,
	log *slog.Logger,
) IAdminService {
	return &AdminService{
		users:    users,
		groups:   groups,
		messages: messages,
		issuer:   issuer,
		log:      log,
	}
}

func (s *AdminService) Stats(token string) (InstanceStats, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return InstanceStats{}, fmt.Errorf("%w: %v", errors.ErrUnauthorized, err)
	}
	if !claims.HasRole(auth.RoleOperator) {
		return InstanceStats{}, fmt.Errorf("%w: operator role required", errors.ErrUnauthorized)
	}

	users, err := s.users.Count()
	if err != nil {
		return InstanceStats{}, err
	}
	groups, err := s.groups.Count()
	if err != nil {
		return InstanceStats{}, err
	}
	messages, err := s.messages.Count()
	if err != nil {
		return InstanceStats{}, err
	}

	s.log.Info("instance stats read", "operator_id", claims.UserID)
	return InstanceStats{Users: users, Groups: groups, Messages: messages}, nil
}
