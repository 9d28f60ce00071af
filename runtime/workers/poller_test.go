package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"halo-chat/domain"
	"halo-chat/domain/event"
	"halo-chat/services"
)

// fakeChat serves canned conversations and typing sets to the pollers.
type fakeChat struct {
	mu       sync.Mutex
	messages []domain.DecodedMessage
	typers   []string
}

func (f *fakeChat) setMessages(messages []domain.DecodedMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = messages
}

func (f *fakeChat) setTypers(typers []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typers = typers
}

func (f *fakeChat) Send(services.SendCommand) (domain.DecodedMessage, error) {
	return domain.DecodedMessage{}, nil
}
func (f *fakeChat) System(string, string) error { return nil }
func (f *fakeChat) Conversation(string, string, bool) ([]domain.DecodedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages, nil
}
func (f *fakeChat) TypingHeartbeat(string, string) {}
func (f *fakeChat) ActiveTypers(string, string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.typers
}
func (f *fakeChat) RecentChats(string) ([]services.RecentChat, error) { return nil, nil }
func (f *fakeChat) SearchUsers(string, string) ([]domain.User, error) { return nil, nil }

func decoded(id, text string, at time.Time) domain.DecodedMessage {
	return domain.DecodedMessage{
		Message: domain.Message{ID: id, SenderID: "alice", ReceiverID: "bob", Timestamp: at},
		Content: domain.MessageContent{Type: domain.MessageText, Content: text},
	}
}

func TestConversationPoller_EmitsOnlyOnChange(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	chat := &fakeChat{}
	chat.setMessages([]domain.DecodedMessage{decoded("m1", "hi", time.Now().UTC())})

	events := make(chan event.DomainEvent, 8)
	poller := NewConversationPoller(chat, "bob", "alice", false, 20*time.Millisecond, events, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = poller.Run(ctx) }()

	// Initial poll emits the current feed.
	select {
	case evt := <-events:
		refreshed, ok := evt.(event.ConversationRefreshed)
		req.True(ok)
		req.Len(refreshed.Messages, 1)
	case <-time.After(time.Second):
		req.Fail("expected initial refresh")
	}

	// No change, no event.
	select {
	case <-events:
		req.Fail("unchanged feed must not emit")
	case <-time.After(100 * time.Millisecond):
	}

	chat.setMessages([]domain.DecodedMessage{
		decoded("m1", "hi", time.Now().UTC()),
		decoded("m2", "hello", time.Now().UTC().Add(time.Second)),
	})

	select {
	case evt := <-events:
		refreshed, ok := evt.(event.ConversationRefreshed)
		req.True(ok)
		req.Len(refreshed.Messages, 2)
	case <-time.After(time.Second):
		req.Fail("expected refresh after append")
	}
}

func TestTypingPoller_EmitsOnDiff(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	chat := &fakeChat{}

	events := make(chan event.DomainEvent, 8)
	poller := NewTypingPoller(chat, "chat-1", "alice", 20*time.Millisecond, events, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = poller.Run(ctx) }()

	chat.setTypers([]string{"bob"})
	select {
	case evt := <-events:
		typing, ok := evt.(event.TypingChanged)
		req.True(ok)
		req.Equal([]string{"bob"}, typing.UserIDs)
	case <-time.After(time.Second):
		req.Fail("expected typing event")
	}

	// Same set again stays silent.
	select {
	case <-events:
		req.Fail("unchanged typer set must not emit")
	case <-time.After(100 * time.Millisecond):
	}

	chat.setTypers(nil)
	select {
	case evt := <-events:
		typing, ok := evt.(event.TypingChanged)
		req.True(ok)
		req.Empty(typing.UserIDs)
	case <-time.After(time.Second):
		req.Fail("expected typing cleared event")
	}
}

func TestPollerStopsWithContext(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	chat := &fakeChat{}

	events := make(chan event.DomainEvent, 1)
	poller := NewTypingPoller(chat, "chat-1", "alice", 10*time.Millisecond, events, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = poller.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("poller must stop when its context is canceled")
	}
}
