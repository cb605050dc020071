package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"komun/internal/client/events"
	"komun/internal/client/fixture"
	"komun/internal/models"
	"komun/internal/storage"
	"komun/pkg/protocol"
)

var fixedNow = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...fixture.Option) (*fixture.Source, *storage.Vault) {
	t.Helper()
	vault := storage.NewVault(storage.NewMemoryStore())
	opts = append([]fixture.Option{fixture.WithClock(func() time.Time { return fixedNow })}, opts...)
	return fixture.New(vault, opts...), vault
}

// signedIn returns a fixture source with the demo user logged in.
func signedIn(t *testing.T, opts ...fixture.Option) *fixture.Source {
	t.Helper()
	src, _ := newFixture(t, opts...)
	if _, err := src.Login(context.Background(), fixture.DemoEmail, fixture.DemoPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return src
}

func newBus(t *testing.T) *events.Bus {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return bus
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func expectEvent(t *testing.T, ch <-chan events.Event, want events.EventType) events.Event {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == want {
				return e
			}
		case <-timeout:
			t.Fatalf("expected %v event", want)
			return events.Event{}
		}
	}
}

func message(id string, minute int) models.Message {
	return models.Message{
		ID:        id,
		ChannelID: "c1",
		Content:   "message " + id,
		Author:    models.Author{ID: "2", FirstName: "Daniel"},
		CreatedAt: fixedNow.Add(time.Duration(minute) * time.Minute),
	}
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

// stubChannels serves fixed newest-first message pages.
type stubChannels struct {
	mu      sync.Mutex
	pages   map[string][]models.Message
	echo    *models.Message
	sendErr error
}

func newStubChannels() *stubChannels {
	return &stubChannels{pages: make(map[string][]models.Message)}
}

func (s *stubChannels) setPage(channelID string, newestFirst ...models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[channelID] = newestFirst
}

func (s *stubChannels) GetChannels(ctx context.Context) ([]models.Channel, error) {
	return []models.Channel{{ID: "c1", Name: "General"}, {ID: "c2", Name: "Garden"}}, nil
}

func (s *stubChannels) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	return &models.Channel{ID: id}, nil
}

func (s *stubChannels) GetMessages(ctx context.Context, channelID string, page int) (*protocol.ListResponse[models.Message], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page > 1 {
		return &protocol.ListResponse[models.Message]{}, nil
	}
	return &protocol.ListResponse[models.Message]{Data: append([]models.Message(nil), s.pages[channelID]...)}, nil
}

func (s *stubChannels) SendMessage(ctx context.Context, channelID, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	m := *s.echo
	m.Content = content
	return &m, nil
}
