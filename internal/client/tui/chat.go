// Package tui renders command output and runs the interactive chat view.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"komun/internal/client/events"
	"komun/internal/client/store"
	apperrors "komun/internal/errors"
	"komun/internal/models"
)

// ChatChannels is the part of the channels store the chat view drives.
type ChatChannels interface {
	State() store.ChannelsState
	FetchMessages(ctx context.Context, channelID string, refresh bool) error
	FetchOlderMessages(ctx context.Context, channelID string) error
	SendMessage(ctx context.Context, channelID, content string) (*models.Message, error)
	StartPolling(channelID string)
	StopPolling()
}

// ChatOptions describes the channel to open.
type ChatOptions struct {
	ChannelID   string
	ChannelName string
	SelfID      string
	// Visible filters messages before display, e.g. to hide blocked authors.
	Visible func([]models.Message) []models.Message
	Timeout time.Duration
}

const maxLogLines = 3

// ChatModel is the Bubble Tea model of one open channel.
type ChatModel struct {
	channels ChatChannels
	opts     ChatOptions
	eventSub <-chan events.Event

	input    textinput.Model
	messages []models.Message
	sending  bool
	loading  bool

	width  int
	height int

	lastError string
	logs      []string
	expired   bool
}

// NewChatModel creates the chat view. bus may be nil.
func NewChatModel(channels ChatChannels, bus *events.Bus, opts ChatOptions) ChatModel {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.ChannelName == "" {
		opts.ChannelName = "#" + opts.ChannelID
	}

	var eventSub <-chan events.Event
	if bus != nil {
		eventSub = bus.Subscribe()
	}

	input := textinput.New()
	input.Placeholder = "Write a message"
	input.CharLimit = 5000
	input.Prompt = "> "
	input.Focus()

	return ChatModel{
		channels: channels,
		opts:     opts,
		eventSub: eventSub,
		input:    input,
		loading:  true,
	}
}

// Messages
type eventMsg events.Event
type loadedMsg struct{ err error }
type sentMsg struct{ err error }

func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		if sub == nil {
			return nil
		}
		event, ok := <-sub
		if !ok {
			return nil
		}
		return eventMsg(event)
	}
}

func (m ChatModel) loadCmd(older bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
		defer cancel()
		if older {
			return loadedMsg{err: m.channels.FetchOlderMessages(ctx, m.opts.ChannelID)}
		}
		return loadedMsg{err: m.channels.FetchMessages(ctx, m.opts.ChannelID, true)}
	}
}

func (m ChatModel) sendCmd(content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
		defer cancel()
		_, err := m.channels.SendMessage(ctx, m.opts.ChannelID, content)
		return sentMsg{err: err}
	}
}

// Init opens the channel and starts polling it.
func (m ChatModel) Init() tea.Cmd {
	m.channels.StartPolling(m.opts.ChannelID)
	cmds := []tea.Cmd{textinput.Blink, m.loadCmd(false)}
	if m.eventSub != nil {
		cmds = append(cmds, waitForEvent(m.eventSub))
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m.quit()
		case "enter":
			content := m.input.Value()
			if strings.TrimSpace(content) == "" || m.sending {
				return m, nil
			}
			m.input.Reset()
			m.sending = true
			m.lastError = ""
			return m, m.sendCmd(content)
		case "pgup", "ctrl+u":
			return m, m.loadCmd(true)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.lastError = apperrors.UserMessage(msg.err, "Could not load messages")
		}
		m = m.refresh()
		return m, nil

	case sentMsg:
		m.sending = false
		if msg.err != nil {
			var sendErr *apperrors.SendError
			if errors.As(msg.err, &sendErr) && m.input.Value() == "" {
				m.input.SetValue(sendErr.Content)
				m.input.CursorEnd()
			}
			m.lastError = apperrors.UserMessage(msg.err, "Message not sent")
			if apperrors.IsAuthError(msg.err) {
				m.expired = true
				return m.quit()
			}
		}
		m = m.refresh()
		return m, nil

	case eventMsg:
		m = m.handleEvent(events.Event(msg))
		if m.expired {
			return m.quit()
		}
		return m, waitForEvent(m.eventSub)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) quit() (tea.Model, tea.Cmd) {
	m.channels.StopPolling()
	return m, tea.Quit
}

func (m ChatModel) handleEvent(event events.Event) ChatModel {
	switch event.Type {
	case events.EventMessagesChanged:
		if data, ok := event.Data.(events.MessagesData); ok && data.ChannelID != "" && data.ChannelID != m.opts.ChannelID {
			return m
		}
		m = m.refresh()

	case events.EventSessionExpired:
		m.expired = true
		m.lastError = "Your session has expired. Please log in again."

	case events.EventError:
		if data, ok := event.Data.(events.ErrorData); ok {
			m.lastError = fmt.Sprintf("%s: %v", data.Context, data.Error)
		}

	case events.EventLog:
		if data, ok := event.Data.(events.LogData); ok && data.Level != "debug" {
			m.logs = append(m.logs, data.Message)
			if len(m.logs) > maxLogLines {
				m.logs = m.logs[len(m.logs)-maxLogLines:]
			}
		}
	}
	return m
}

// refresh copies the open channel's messages out of the store.
func (m ChatModel) refresh() ChatModel {
	st := m.channels.State()
	if st.ChannelID != m.opts.ChannelID {
		return m
	}
	msgs := st.Messages
	if m.opts.Visible != nil {
		msgs = m.opts.Visible(msgs)
	}
	m.messages = msgs
	return m
}

// Expired reports whether the view closed because the session ended.
func (m ChatModel) Expired() bool {
	return m.expired
}

// Input returns the current input text.
func (m ChatModel) Input() string {
	return m.input.Value()
}

// View renders the model
func (m ChatModel) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(m.renderMessages())
	b.WriteString("\n\n")

	for _, line := range m.logs {
		b.WriteString(hintStyle.Render(line))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString(errorStyle.Render(m.lastError))
		b.WriteString("\n")
	}
	if m.sending {
		b.WriteString(pendingStyle.Render("Sending..."))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	return b.String()
}

func (m ChatModel) renderHeader() string {
	title := titleStyle.Render(m.opts.ChannelName)
	hint := hintStyle.Render("(PgUp older, Esc to quit)")

	spacing := strings.Repeat(" ", 4)
	if m.width > 0 {
		if spaces := m.width - lipgloss.Width(title) - lipgloss.Width(hint); spaces > 0 {
			spacing = strings.Repeat(" ", spaces)
		}
	}
	return title + spacing + hint
}

func (m ChatModel) renderMessages() string {
	if m.loading && len(m.messages) == 0 {
		return hintStyle.Render("Loading messages...")
	}
	msgs := m.messages
	if m.height > 0 {
		// header, blank lines, status and input
		room := m.height - 6 - len(m.logs)
		if room < 1 {
			room = 1
		}
		if len(msgs) > room {
			msgs = msgs[len(msgs)-room:]
		}
	}
	return Messages(msgs, m.opts.SelfID)
}

// RunChat opens the chat view full screen and blocks until it closes.
// Polling is stopped when it returns.
func RunChat(channels ChatChannels, bus *events.Bus, opts ChatOptions) (ChatModel, error) {
	defer channels.StopPolling()

	p := tea.NewProgram(NewChatModel(channels, bus, opts), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return ChatModel{}, err
	}
	model, _ := final.(ChatModel)
	return model, nil
}
