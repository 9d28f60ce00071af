package workers

import (
	"context"
	"log/slog"
	"time"

	"halo-chat/services"
)

// LivenessWorker publishes the local user's heartbeat: once at session
// start and then on a fixed interval, so direct chat partners see a
// fresh last-seen timestamp.
type LivenessWorker struct {
	account  services.IAuthService
	userID   string
	interval time.Duration
	log      *slog.Logger
}

func NewLivenessWorker(account services.IAuthService, userID string, interval time.Duration, log *slog.Logger) *LivenessWorker {
	return &LivenessWorker{account: account, userID: userID, interval: interval, log: log}
}

func (w *LivenessWorker) Run(ctx context.Context) error {
	if err := w.account.Heartbeat(w.userID); err != nil {
		w.log.Warn("Initial liveness heartbeat failed", "user_id", w.userID, "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping liveness worker")
			return nil
		case <-ticker.C:
			if err := w.account.Heartbeat(w.userID); err != nil {
				w.log.Warn("Liveness heartbeat failed", "user_id", w.userID, "error", err)
			}
		}
	}
}
