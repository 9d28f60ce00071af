package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"halo-chat/domain/event"
	"halo-chat/services"
)

// TypingPoller samples the typing indicator of one open chat and emits
// TypingChanged whenever the set of active typers differs from the last
// sample. Cancelling the context tears the poller down with its view.
type TypingPoller struct {
	chat     services.IChatService
	chatID   string
	selfID   string
	interval time.Duration
	events   chan<- event.DomainEvent
	log      *slog.Logger

	last []string
}

func NewTypingPoller(
	chat services.IChatService,
	chatID, selfID string,
	interval time.Duration,
	events chan<- event.DomainEvent,
	log *slog.Logger,
) *TypingPoller {
	return &TypingPoller{
		chat:     chat,
		chatID:   chatID,
		selfID:   selfID,
		interval: interval,
		events:   events,
		log:      log,
	}
}

func (w *TypingPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping typing poller", "chat_id", w.chatID)
			return nil
		case <-ticker.C:
			typers := w.chat.ActiveTypers(w.chatID, w.selfID)
			if sameMembers(typers, w.last) {
				continue
			}
			w.last = typers
			select {
			case w.events <- event.TypingChanged{Chat: w.chatID, UserIDs: typers}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func sameMembers(a, b []string) bool {
	return len(a) == len(b) && len(lo.Intersect(a, b)) == len(a)
}
