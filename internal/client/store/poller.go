package store

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the message refresh period of an open channel.
const DefaultPollInterval = 5 * time.Second

// MessagePoller runs one periodic fetch loop at a time. It holds the only
// cancel handle, so starting a new loop always stops the previous one.
type MessagePoller struct {
	mu        sync.Mutex
	interval  time.Duration
	tick      func(ctx context.Context, channelID string)
	cancel    context.CancelFunc
	done      chan struct{}
	channelID string
}

// NewMessagePoller creates a poller that calls tick every interval.
// tick must not call Start or Stop.
func NewMessagePoller(interval time.Duration, tick func(ctx context.Context, channelID string)) *MessagePoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &MessagePoller{interval: interval, tick: tick}
}

// Start stops any running loop, waits for it to exit, then starts polling channelID.
func (p *MessagePoller) Start(channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.channelID = channelID

	go p.run(ctx, channelID, done)
}

// Stop cancels the loop and its in-flight fetch and waits for it to exit.
// Safe to call repeatedly or when never started.
func (p *MessagePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Running reports whether a loop is active.
func (p *MessagePoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// ChannelID returns the channel being polled, or "".
func (p *MessagePoller) ChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channelID
}

func (p *MessagePoller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
	p.channelID = ""
}

func (p *MessagePoller) run(ctx context.Context, channelID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, channelID)
		}
	}
}
