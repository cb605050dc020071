package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"komun/internal/client/events"
	"komun/internal/client/logger"
	apperrors "komun/internal/errors"
	"komun/internal/models"
	"komun/internal/sentry"
	"komun/pkg/protocol"
)

// ChannelsState is a snapshot of the channel list and the open channel.
type ChannelsState struct {
	Channels  []models.Channel
	IsLoading bool
	Err       string

	CurrentChannel    *models.Channel
	ChannelID         string // channel whose messages are held
	Messages          []models.Message
	IsLoadingMessages bool
	IsLoadingOlder    bool
	Page              int
	HasMoreMessages   bool
	IsSending         bool
}

// ChannelsStore owns the channel list and the messages of one open channel.
type ChannelsStore struct {
	mu     sync.Mutex
	src    ChannelSource
	bus    *events.Bus
	state  ChannelsState
	poller *MessagePoller
}

// NewChannelsStore creates the store; pollInterval <= 0 selects DefaultPollInterval.
func NewChannelsStore(src ChannelSource, bus *events.Bus, pollInterval time.Duration) *ChannelsStore {
	s := &ChannelsStore{src: src, bus: bus}
	s.poller = NewMessagePoller(pollInterval, s.pollOnce)
	s.state = ChannelsState{HasMoreMessages: true}
	return s
}

// Reset stops polling and returns the store to its initial empty state.
func (s *ChannelsStore) Reset() {
	s.poller.Stop()
	s.mu.Lock()
	s.state = ChannelsState{HasMoreMessages: true}
	s.mu.Unlock()
	s.bus.PublishType(events.EventChannelsChanged)
	s.bus.PublishType(events.EventMessagesChanged)
}

// State returns a copy of the current state.
func (s *ChannelsStore) State() ChannelsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Channels = slices.Clone(st.Channels)
	st.Messages = slices.Clone(st.Messages)
	if st.CurrentChannel != nil {
		ch := *st.CurrentChannel
		st.CurrentChannel = &ch
	}
	return st
}

// Poller exposes the message poller.
func (s *ChannelsStore) Poller() *MessagePoller {
	return s.poller
}

// FetchChannels replaces the channel list. No-op while already loading.
func (s *ChannelsStore) FetchChannels(ctx context.Context) error {
	s.mu.Lock()
	if s.state.IsLoading {
		s.mu.Unlock()
		return nil
	}
	s.state.IsLoading = true
	s.mu.Unlock()

	channels, err := s.src.GetChannels(ctx)

	s.mu.Lock()
	s.state.IsLoading = false
	if err != nil {
		err = apperrors.Normalize(err, "Could not load channels")
		s.state.Err = err.Error()
	} else {
		s.state.Channels = channels
		s.state.Err = ""
	}
	s.mu.Unlock()

	s.bus.PublishType(events.EventChannelsChanged)
	return err
}

// FetchChannel loads one channel as the current channel.
func (s *ChannelsStore) FetchChannel(ctx context.Context, id string) error {
	ch, err := s.src.GetChannel(ctx, id)
	if err != nil {
		return apperrors.Normalize(err, "Could not load the channel")
	}
	s.mu.Lock()
	s.state.CurrentChannel = ch
	s.mu.Unlock()
	s.bus.PublishType(events.EventChannelsChanged)
	return nil
}

// openLocked switches the held messages to channelID.
func (s *ChannelsStore) openLocked(channelID string) {
	if s.state.ChannelID == channelID {
		return
	}
	s.state.ChannelID = channelID
	s.state.Messages = nil
	s.state.Page = 0
	s.state.HasMoreMessages = true
	s.state.IsLoadingMessages = false
	s.state.IsLoadingOlder = false
}

// FetchMessages loads the latest page of channelID in display order.
// No-op while the same channel is already loading.
func (s *ChannelsStore) FetchMessages(ctx context.Context, channelID string, refresh bool) error {
	s.mu.Lock()
	if s.state.ChannelID == channelID && s.state.IsLoadingMessages {
		s.mu.Unlock()
		return nil
	}
	s.openLocked(channelID)
	if refresh {
		s.state.Messages = nil
		s.state.Page = 0
	}
	s.state.IsLoadingMessages = true
	s.mu.Unlock()

	resp, err := s.src.GetMessages(ctx, channelID, 1)

	s.mu.Lock()
	if s.state.ChannelID != channelID {
		s.mu.Unlock()
		return nil
	}
	s.state.IsLoadingMessages = false
	if err == nil {
		s.state.Messages = sortByCreatedAt(resp.Data)
		s.state.Page = 1
		s.state.HasMoreMessages = resp.HasMore()
	}
	s.mu.Unlock()

	s.bus.Publish(events.Event{Type: events.EventMessagesChanged, Data: events.MessagesData{ChannelID: channelID}})
	if err != nil {
		return apperrors.Normalize(err, "Could not load messages")
	}
	return nil
}

// FetchOlderMessages prepends the next older page.
func (s *ChannelsStore) FetchOlderMessages(ctx context.Context, channelID string) error {
	s.mu.Lock()
	if s.state.ChannelID != channelID || s.state.IsLoadingMessages || s.state.IsLoadingOlder || !s.state.HasMoreMessages {
		s.mu.Unlock()
		return nil
	}
	s.state.IsLoadingOlder = true
	next := s.state.Page + 1
	s.mu.Unlock()

	resp, err := s.src.GetMessages(ctx, channelID, next)

	s.mu.Lock()
	if s.state.ChannelID != channelID {
		s.mu.Unlock()
		return nil
	}
	s.state.IsLoadingOlder = false
	if err == nil {
		older := sortByCreatedAt(resp.Data)
		known := make(map[string]struct{}, len(s.state.Messages))
		for _, m := range s.state.Messages {
			known[m.ID] = struct{}{}
		}
		older = slices.DeleteFunc(older, func(m models.Message) bool {
			_, ok := known[m.ID]
			return ok
		})
		s.state.Messages = append(older, s.state.Messages...)
		s.state.Page = next
		s.state.HasMoreMessages = resp.HasMore()
	}
	s.mu.Unlock()

	s.bus.Publish(events.Event{Type: events.EventMessagesChanged, Data: events.MessagesData{ChannelID: channelID, Older: true}})
	if err != nil {
		return apperrors.Normalize(err, "Could not load older messages")
	}
	return nil
}

// SendMessage posts content and appends the echoed message unless a poll
// already delivered it. On failure the returned *apperrors.SendError
// carries the original content and nothing is inserted.
func (s *ChannelsStore) SendMessage(ctx context.Context, channelID, content string) (*models.Message, error) {
	req := protocol.ContentRequest{Content: strings.TrimSpace(content)}
	if err := validateStruct(req); err != nil {
		return nil, &apperrors.SendError{Content: content, Err: err}
	}

	s.mu.Lock()
	s.state.IsSending = true
	s.mu.Unlock()

	msg, err := s.src.SendMessage(ctx, channelID, req.Content)
	if err != nil {
		s.mu.Lock()
		s.state.IsSending = false
		s.mu.Unlock()
		return nil, &apperrors.SendError{Content: content, Err: apperrors.Normalize(err, "Message not sent")}
	}

	s.mu.Lock()
	s.state.IsSending = false
	added := 0
	if s.state.ChannelID == channelID && !slices.ContainsFunc(s.state.Messages, func(m models.Message) bool { return m.ID == msg.ID }) {
		s.state.Messages = append(s.state.Messages, *msg)
		added = 1
	}
	if i := slices.IndexFunc(s.state.Channels, func(c models.Channel) bool { return c.ID == channelID }); i >= 0 {
		s.state.Channels[i].ApplyMessage(*msg)
	}
	if s.state.CurrentChannel != nil && s.state.CurrentChannel.ID == channelID {
		s.state.CurrentChannel.ApplyMessage(*msg)
	}
	s.mu.Unlock()

	s.bus.Publish(events.Event{Type: events.EventMessagesChanged, Data: events.MessagesData{ChannelID: channelID, Added: added}})
	s.bus.PublishType(events.EventChannelsChanged)
	return msg, nil
}

// StartPolling makes channelID the open channel and polls it for new messages.
func (s *ChannelsStore) StartPolling(channelID string) {
	s.mu.Lock()
	s.openLocked(channelID)
	s.mu.Unlock()
	s.poller.Start(channelID)
}

// StopPolling stops the message poller.
func (s *ChannelsStore) StopPolling() {
	s.poller.Stop()
}

// ClearCurrentChannel stops polling and drops the open channel's messages.
func (s *ChannelsStore) ClearCurrentChannel() {
	s.poller.Stop()
	s.mu.Lock()
	s.state.CurrentChannel = nil
	s.state.ChannelID = ""
	s.state.Messages = nil
	s.state.Page = 0
	s.state.HasMoreMessages = true
	s.state.IsLoadingMessages = false
	s.state.IsLoadingOlder = false
	s.mu.Unlock()
	s.bus.PublishType(events.EventMessagesChanged)
}

// pollOnce fetches the latest page and appends unseen messages. Results for
// a channel that is no longer open, or that arrive after Stop, are dropped.
func (s *ChannelsStore) pollOnce(ctx context.Context, channelID string) {
	resp, err := s.src.GetMessages(ctx, channelID, 1)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			sentry.CaptureErrorf(err, "Message poll for channel %s failed", channelID)
		}
		return
	}

	fetched := sortByCreatedAt(resp.Data)

	s.mu.Lock()
	if s.state.ChannelID != channelID {
		s.mu.Unlock()
		return
	}
	before := len(s.state.Messages)
	s.state.Messages = appendNew(s.state.Messages, fetched, func(m models.Message) string { return m.ID })
	added := len(s.state.Messages) - before
	s.mu.Unlock()

	if added > 0 {
		logger.Debug("Poll added %d message(s) to channel %s", added, channelID)
		s.bus.Publish(events.Event{Type: events.EventMessagesChanged, Data: events.MessagesData{ChannelID: channelID, Added: added}})
	}
}

// sortByCreatedAt turns a newest-first server page into display order,
// oldest first.
func sortByCreatedAt(msgs []models.Message) []models.Message {
	out := slices.Clone(msgs)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b models.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
