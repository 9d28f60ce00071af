package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"halo-chat/auth"
	"halo-chat/codec"
	"halo-chat/domain/event"
	"halo-chat/internal"
	"halo-chat/moderation"
	"halo-chat/notify"
	"halo-chat/presence"
	"halo-chat/repositories"
	"halo-chat/runtime/workers"
	"halo-chat/search"
	"halo-chat/services"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// main is a thin wrapper: run() owns the lifecycle so every defer
	// fires before the process exits.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Messenger terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Domain wiring
	messageCodec, err := codec.New(config.CodecPassphrase, config.CodecSalt, config.CodecIterations)
	if err != nil {
		return exitConfig, fmt.Errorf("codec setup failed: %w", err)
	}

	moderator, err := moderation.NewModerator(config.CensoredWords, charReplacement, logger)
	if err != nil {
		return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
	}

	userRepository := repositories.NewUserRepository(db)
	groupRepository := repositories.NewGroupRepository(db)
	messageRepository := repositories.NewMessageRepository(db)
	groupIndex := search.NewGroupIndex(blugeWriter, logger)
	tracker := presence.NewTracker(config.TypingActiveThreshold, config.TypingStaleThreshold)

	chatService := services.NewChatService(
		messageRepository, groupRepository, userRepository,
		messageCodec, moderator, tracker, logger)
	groupService := services.NewGroupService(
		groupRepository, userRepository, groupIndex, chatService, logger)

	var notifier notify.Notifier = notify.LogNotifier{Log: logger}
	if config.SMTPHost != "" {
		notifier = notify.NewSMTPNotifier(
			config.SMTPHost, config.SMTPPort,
			config.SMTPUsername, config.SMTPPassword, config.SMTPFrom, logger)
	}

	issuer := auth.NewTokenIssuer(config.AuthSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, issuer, notifier, config.Operators, logger)
	adminService := services.NewAdminService(userRepository, groupRepository, messageRepository, issuer, logger)

	// The bluge index is rebuilt from the store on every boot.
	if err := groupService.ReindexPublicGroups(); err != nil {
		return exitRuntime, fmt.Errorf("group index rebuild failed: %w", err)
	}

	if config.Debug {
		endpoint := "/inspect"
		inspectorToken, err := issuer.Issue("local-inspector", []string{auth.RoleOperator})
		if err != nil {
			return exitRuntime, fmt.Errorf("inspector token failed: %w", err)
		}
		logger.Info("Debug store inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		internal.StartDebugServer(db, config.DebugPort, endpoint, storeMapper, func() map[string]any {
			stats, err := adminService.Stats(inspectorToken)
			if err != nil {
				return map[string]any{"error": err.Error()}
			}
			return map[string]any{
				"users":    stats.Users,
				"groups":   stats.Groups,
				"messages": stats.Messages,
			}
		})
	}

	// 4. Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers
	events := make(chan event.DomainEvent, 64)
	fanout := workers.NewEventFanout(logger, events)

	sup := workers.NewSupervisor(logger)
	sup.Add(fanout, workers.NewHealthWorker(logger, config.MetricInterval))

	if config.SessionLogin != "" {
		user, _, err := authService.Login(config.SessionLogin, config.SessionPassword)
		if err != nil {
			return exitConfig, fmt.Errorf("session login failed: %w", err)
		}
		logger.Info("Session opened", "user_id", user.ID, "username", user.Username)
		sup.Add(workers.NewLivenessWorker(authService, user.ID, config.LivenessInterval, logger))
	}

	logger.Info("Starting messenger runtime...")
	go sup.Run(ctx)

	// 6. Wait for shutdown
	<-ctx.Done()
	logger.Info("Shutdown signal received")
	sup.Stop()
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

func storeMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)
	row.Detail = repositories.Describe(key, val)
	return row
}
