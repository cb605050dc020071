package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"komun/internal/client/app"
	"komun/internal/client/store"
	"komun/internal/client/tui"
)

var residentsCmd = &cobra.Command{
	Use:   "residents [query]",
	Short: "List your neighbours, optionally filtered by name, apartment or floor",
	Args:  cobra.ArbitraryArgs,
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if err := s.Residents.Fetch(ctx); err != nil {
			return err
		}
		residents := s.Residents.Search(strings.Join(args, " "))
		if len(residents) == 0 && len(args) > 0 {
			printOut(cmd, fmt.Sprintf("No residents match %q", strings.Join(args, " ")))
			return nil
		}
		printOut(cmd, tui.Residents(residents))
		return nil
	}),
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List blocked users",
	Args:  cobra.NoArgs,
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if err := s.Blocked.Fetch(ctx); err != nil {
			return err
		}
		printOut(cmd, tui.Blocks(s.Blocked.State().Blocks))
		return nil
	}),
}

var blockCmd = &cobra.Command{
	Use:   "block [user]",
	Short: "Hide a user's posts, comments and messages",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if err := s.Blocked.Fetch(ctx); err != nil {
			return err
		}
		if err := s.Blocked.Block(ctx, args[0]); err != nil {
			return err
		}
		printOut(cmd, "Blocked user "+args[0])
		return nil
	}),
}

var unblockCmd = &cobra.Command{
	Use:   "unblock [block]",
	Short: "Remove a block by its id",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if err := s.Blocked.Fetch(ctx); err != nil {
			return err
		}
		if err := s.Blocked.Unblock(ctx, args[0]); err != nil {
			return err
		}
		printOut(cmd, "Unblocked")
		return nil
	}),
}

var reportCmd = &cobra.Command{
	Use:   "report [post|comment|message|user] [id] [reason]",
	Short: "Report content to the building moderators",
	Args:  cobra.MinimumNArgs(3),
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if err := s.Reporter.Report(ctx, args[0], args[1], strings.Join(args[2:], " ")); err != nil {
			return err
		}
		printOut(cmd, "Report sent. Thank you")
		return nil
	}),
}

// report types, for shell completion
var reportTypes = []string{store.ReportPost, store.ReportComment, store.ReportMessage, store.ReportUser}

func init() {
	reportCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return reportTypes, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}
