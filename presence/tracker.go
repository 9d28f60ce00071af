// Package presence tracks ephemeral typing heartbeats. Entries live only
// in process memory: losing them costs at most a momentarily wrong typing
// indicator, never domain state.
package presence

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultActiveThreshold bounds how old a heartbeat may be to still
	// count as "currently typing".
	DefaultActiveThreshold = 3 * time.Second
	// DefaultStaleThreshold bounds how old an entry may get before it is
	// physically purged. Strictly longer than the active window, so a user
	// stops being "typing" long before their entry disappears.
	DefaultStaleThreshold = 10 * time.Second
)

type Tracker struct {
	mu     sync.Mutex
	chats  map[string]map[string]time.Time // chatID -> userID -> last heartbeat
	active time.Duration
	stale  time.Duration
	now    func() time.Time
}

func NewTracker(active, stale time.Duration) *Tracker {
	if active <= 0 {
		active = DefaultActiveThreshold
	}
	if stale <= active {
		stale = DefaultStaleThreshold
	}
	return &Tracker{
		chats:  make(map[string]map[string]time.Time),
		active: active,
		stale:  stale,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Heartbeat records that userID is typing in chatID right now. Every write
// also sweeps stale entries across all chats, so no separate cleanup
// process is needed: a tracker that receives no writes holds no fresh
// entries worth purging.
func (t *Tracker) Heartbeat(chatID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	users, ok := t.chats[chatID]
	if !ok {
		users = make(map[string]time.Time)
		t.chats[chatID] = users
	}
	users[userID] = now

	for cID, entries := range t.chats {
		for uID, at := range entries {
			if now.Sub(at) > t.stale {
				delete(entries, uID)
			}
		}
		if len(entries) == 0 {
			delete(t.chats, cID)
		}
	}
}

// ActiveTypers returns the users, excluding selfID, whose last heartbeat
// in chatID falls within the active window. Sorted for deterministic
// rendering.
func (t *Tracker) ActiveTypers(chatID, selfID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var typers []string
	for userID, at := range t.chats[chatID] {
		if userID == selfID {
			continue
		}
		if now.Sub(at) < t.active {
			typers = append(typers, userID)
		}
	}
	sort.Strings(typers)
	return typers
}
