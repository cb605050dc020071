package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"komun/internal/client/app"
	"komun/internal/client/config"
	"komun/internal/client/logger"
	"komun/internal/client/store"
	"komun/internal/client/tui"
	apperrors "komun/internal/errors"
	"komun/internal/models"
)

var (
	olderPages int
	forceChat  bool
)

func init() {
	messagesCmd.Flags().IntVar(&olderPages, "older", 0, "Also load this many pages of older messages")
	chatCmd.Flags().BoolVar(&forceChat, "force", false, "Take over the chat view from another terminal")
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List chat channels",
	Args:  cobra.NoArgs,
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if err := s.Channels.FetchChannels(ctx); err != nil {
			return err
		}
		printOut(cmd, tui.Channels(s.Channels.State().Channels, time.Now()))
		return nil
	}),
}

var messagesCmd = &cobra.Command{
	Use:   "messages [channel]",
	Short: "Print the latest messages of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		channelID := args[0]
		if err := s.Channels.FetchMessages(ctx, channelID, true); err != nil {
			return err
		}
		for i := 0; i < olderPages && s.Channels.State().HasMoreMessages; i++ {
			if err := s.Channels.FetchOlderMessages(ctx, channelID); err != nil {
				return err
			}
		}
		if err := s.Blocked.Fetch(ctx); err != nil {
			return err
		}

		printOut(cmd, tui.Messages(s.VisibleMessages(), s.Auth.UserID()))
		return nil
	}),
}

var chatCmd = &cobra.Command{
	Use:   "chat [channel]",
	Short: "Open a channel in the live chat view",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		channelID := args[0]

		lock, err := config.AcquireChatLock(channelID, forceChat)
		if err != nil {
			if errors.Is(err, config.ErrAlreadyRunning) {
				return fmt.Errorf("%w. Use --force to take it over", err)
			}
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("Failed to release chat lock: %v", err)
			}
		}()

		if err := s.Channels.FetchChannel(ctx, channelID); err != nil {
			return err
		}
		if err := s.Blocked.Fetch(ctx); err != nil {
			return err
		}

		name := ""
		if ch := s.Channels.State().CurrentChannel; ch != nil {
			name = ch.Name
		}

		logger.SetInteractive(true)
		defer logger.SetInteractive(false)

		model, err := tui.RunChat(s.Channels, s.Bus, tui.ChatOptions{
			ChannelID:   channelID,
			ChannelName: name,
			SelfID:      s.Auth.UserID(),
			Visible: func(msgs []models.Message) []models.Message {
				return store.VisibleMessages(msgs, s.Blocked.BlockedIDs())
			},
			Timeout: s.Config.RequestTimeout,
		})
		if err != nil {
			return err
		}
		if model.Expired() {
			s.Auth.Expire()
			return &apperrors.AuthError{Message: "Your session has expired. Run 'komun login' again"}
		}
		if draft := model.Input(); draft != "" {
			printOut(cmd, "Unsent draft: "+draft)
		}
		return nil
	}),
}
