package workers

import (
	"context"
	"log/slog"
	"time"

	"halo-chat/domain/event"
	"halo-chat/repositories"
)

// PeerPresencePoller tracks the last-seen timestamp of one direct chat
// partner at a coarse cadence and emits PresenceChanged when it moves.
type PeerPresencePoller struct {
	users    repositories.IUserRepository
	peerID   string
	interval time.Duration
	events   chan<- event.DomainEvent
	log      *slog.Logger

	lastSeen time.Time
}

func NewPeerPresencePoller(
	users repositories.IUserRepository,
	peerID string,
	interval time.Duration,
	events chan<- event.DomainEvent,
	log *slog.Logger,
) *PeerPresencePoller {
	return &PeerPresencePoller{
		users:    users,
		peerID:   peerID,
		interval: interval,
		events:   events,
		log:      log,
	}
}

func (w *PeerPresencePoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence poller", "peer_id", w.peerID)
			return nil
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *PeerPresencePoller) poll(ctx context.Context) {
	peer, err := w.users.GetByID(w.peerID)
	if err != nil {
		w.log.Debug("Presence refresh failed", "peer_id", w.peerID, "error", err)
		return
	}
	if peer.LastSeen.Equal(w.lastSeen) {
		return
	}
	w.lastSeen = peer.LastSeen

	select {
	case w.events <- event.PresenceChanged{UserID: w.peerID, LastSeen: peer.LastSeen}:
	case <-ctx.Done():
	}
}
