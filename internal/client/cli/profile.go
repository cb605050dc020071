package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"komun/internal/client/app"
	"komun/internal/client/tui"
	"komun/pkg/protocol"
)

var (
	profileUpd     protocol.ProfileUpdate
	deletePassword string
	deleteYes      bool
	markRead       string
)

func init() {
	f := profileUpdateCmd.Flags()
	f.StringVar(&profileUpd.FirstName, "first-name", "", "First name")
	f.StringVar(&profileUpd.LastName, "last-name", "", "Last name")
	f.StringVar(&profileUpd.Phone, "phone", "", "Phone number")
	f.StringVar(&profileUpd.Bio, "bio", "", "Short bio")
	f.StringVar(&profileUpd.AvatarPath, "avatar", "", "Path of a new avatar image")

	profileDeleteCmd.Flags().StringVar(&deletePassword, "password", "", "Current password (prompted when omitted)")
	profileDeleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "Do not ask for confirmation")

	notificationsCmd.Flags().StringVar(&markRead, "mark-read", "", "Mark the notification with this id as read")

	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd, profileDeleteCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View and edit your profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile",
	Args:  cobra.NoArgs,
	RunE:  withSession(true, showProfile),
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change profile fields",
	Args:  cobra.NoArgs,
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if profileUpd == (protocol.ProfileUpdate{}) {
			return errors.New("nothing to update. Pass at least one field flag")
		}
		if err := s.Auth.UpdateProfile(ctx, profileUpd); err != nil {
			return err
		}
		printOut(cmd, "Profile updated")
		return showProfile(ctx, s, cmd, args)
	}),
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete your account",
	Args:  cobra.NoArgs,
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		if !deleteYes {
			answer, err := p.value("", "Delete your account and all your posts? Type 'yes' to confirm: ")
			if err != nil {
				return err
			}
			if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
				printOut(cmd, "Cancelled")
				return nil
			}
		}
		password, err := p.value(deletePassword, "Password: ")
		if err != nil {
			return err
		}
		if err := s.Auth.DeleteAccount(ctx, password); err != nil {
			return err
		}
		printOut(cmd, "Account deleted")
		return nil
	}),
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show your notifications",
	Args:  cobra.NoArgs,
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if markRead != "" {
			if err := s.Source.MarkNotificationRead(ctx, markRead); err != nil {
				return err
			}
		}
		items, err := s.Source.GetNotifications(ctx)
		if err != nil {
			return err
		}
		printOut(cmd, tui.Notifications(items, time.Now()))
		return nil
	}),
}
