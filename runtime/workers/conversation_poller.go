package workers

import (
	"context"
	"log/slog"
	"time"

	"halo-chat/domain"
	"halo-chat/domain/event"
	"halo-chat/services"
)

// ConversationPoller refreshes one open conversation on a fixed cadence
// and emits ConversationRefreshed whenever the feed changed. One poller
// exists per open view; cancelling its context is the teardown, so no
// poll outlives the conversation that started it.
type ConversationPoller struct {
	chat     services.IChatService
	selfID   string
	targetID string
	isGroup  bool
	interval time.Duration
	events   chan<- event.DomainEvent
	log      *slog.Logger

	lastSeen string
}

func NewConversationPoller(
	chat services.IChatService,
	selfID, targetID string,
	isGroup bool,
	interval time.Duration,
	events chan<- event.DomainEvent,
	log *slog.Logger,
) *ConversationPoller {
	return &ConversationPoller{
		chat:     chat,
		selfID:   selfID,
		targetID: targetID,
		isGroup:  isGroup,
		interval: interval,
		events:   events,
		log:      log,
	}
}

func (w *ConversationPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping conversation poller", "chat_id", w.targetID)
			return nil
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *ConversationPoller) poll(ctx context.Context) {
	messages, err := w.chat.Conversation(w.selfID, w.targetID, w.isGroup)
	if err != nil {
		w.log.Error("Conversation refresh failed", "chat_id", w.targetID, "error", err)
		return
	}

	marker := feedMarker(messages)
	if marker == w.lastSeen {
		return
	}
	w.lastSeen = marker

	select {
	case w.events <- event.ConversationRefreshed{Chat: w.targetID, Messages: messages}:
	case <-ctx.Done():
	}
}

// feedMarker condenses a feed into a cheap change detector: the id and
// timestamp of the last entry cover appends, the only mutation an
// append-only log allows.
func feedMarker(messages []domain.DecodedMessage) string {
	if len(messages) == 0 {
		return ""
	}
	last := messages[len(messages)-1]
	return last.ID + ":" + last.Timestamp.UTC().Format(time.RFC3339Nano)
}
