package workers

import (
	"context"
	"log/slog"
	"sync"

	"halo-chat/contract"
	"halo-chat/domain/event"
)

// EventFanout broadcasts domain events to in-process consumers. Sinks
// subscribe per chat; global sinks see everything. Fan-out is best
// effort with no delivery, ordering or durability guarantees, it feeds
// the UI and observability, never core domain logic.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	log    *slog.Logger
	events chan event.DomainEvent

	mu     sync.RWMutex
	byChat map[string][]contract.EventSink
	global []contract.EventSink
}

func NewEventFanout(log *slog.Logger, events chan event.DomainEvent) *EventFanout {
	return &EventFanout{
		log:    log,
		events: events,
		byChat: make(map[string][]contract.EventSink),
	}
}

// Subscribe attaches a sink to one chat feed. An empty chatID makes the
// sink global.
func (w *EventFanout) Subscribe(chatID string, sink contract.EventSink) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if chatID == "" {
		w.global = append(w.global, sink)
		return
	}
	w.byChat[chatID] = append(w.byChat[chatID], sink)
}

func (w *EventFanout) Unsubscribe(chatID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.byChat, chatID)
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.fanout(evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

func (w *EventFanout) fanout(evt event.DomainEvent) {
	w.mu.RLock()
	sinks := append(append([]contract.EventSink(nil), w.global...), w.byChat[evt.ChatID()]...)
	w.mu.RUnlock()

	for _, sink := range sinks {
		sink.Consume(evt)
	}
}
