package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"halo-chat/auth"
	"halo-chat/domain"
	"halo-chat/errors"
	"halo-chat/repositories"
)

func TestAdminService_Stats(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	users := repositories.NewUserRepository(db)
	groups := repositories.NewGroupRepository(db)
	messages := repositories.NewMessageRepository(db)
	service := NewAdminService(users, groups, messages, issuer, logs.GetLoggerFromLevel(slog.LevelError))

	_, err = users.Create(domain.User{Username: "alice", Email: "alice@example.com"}, "hash")
	req.NoError(err)
	req.NoError(groups.Create(domain.Group{ID: "g1", Name: "Devs", Type: domain.GroupPrivate}))
	req.NoError(messages.Append(domain.Message{
		ID: "m1", SenderID: "a", ReceiverID: "b", Envelope: "x", Timestamp: time.Now().UTC(),
	}))

	operatorToken, err := issuer.Issue("op-1", []string{auth.RoleOperator})
	req.NoError(err)
	stats, err := service.Stats(operatorToken)
	req.NoError(err)
	req.Equal(InstanceStats{Users: 1, Groups: 1, Messages: 1}, stats)

	userToken, err := issuer.Issue("user-1", []string{"user"})
	req.NoError(err)
	_, err = service.Stats(userToken)
	req.ErrorIs(err, errors.ErrUnauthorized)

	_, err = service.Stats("garbage-token")
	req.ErrorIs(err, errors.ErrUnauthorized)
}
