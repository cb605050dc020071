package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"komun/internal/client/app"
	"komun/internal/client/logger"
	"komun/internal/client/tui"
	"komun/pkg/protocol"
)

var (
	loginEmail    string
	loginPassword string

	registerReq protocol.RegisterRequest
)

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")

	registerCmd.Flags().StringVar(&registerReq.Email, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerReq.Password, "password", "", "Password, at least 8 characters")
	registerCmd.Flags().StringVar(&registerReq.FirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerReq.LastName, "last-name", "", "Last name")
	registerCmd.Flags().StringVar(&registerReq.InvitationCode, "code", "", "Invitation code from your building")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to your community",
	Args:  cobra.NoArgs,
	RunE: withSession(false, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		email, err := p.value(loginEmail, "Email: ")
		if err != nil {
			return err
		}
		password, err := p.value(loginPassword, "Password: ")
		if err != nil {
			return err
		}

		if err := s.Auth.Login(ctx, email, password); err != nil {
			return err
		}
		printOut(cmd, "Logged in as "+s.Auth.State().User.FullName())
		return nil
	}),
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account with an invitation code",
	Args:  cobra.NoArgs,
	RunE: withSession(false, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		req := registerReq
		p := newPrompter(cmd)
		var err error
		if req.InvitationCode, err = p.value(req.InvitationCode, "Invitation code: "); err != nil {
			return err
		}

		v, err := s.Auth.VerifyInvitation(ctx, req.InvitationCode)
		if err != nil {
			return err
		}
		if !v.Valid {
			return fmt.Errorf("invitation code %q is not valid", req.InvitationCode)
		}
		printOut(cmd, fmt.Sprintf("Joining %s (%s)", v.OrganizationName, v.BuildingName))

		for _, f := range []struct {
			dst   *string
			label string
		}{
			{&req.FirstName, "First name: "},
			{&req.LastName, "Last name: "},
			{&req.Email, "Email: "},
			{&req.Password, "Password: "},
		} {
			if *f.dst, err = p.value(*f.dst, f.label); err != nil {
				return err
			}
		}

		if err := s.Auth.Register(ctx, req); err != nil {
			return err
		}
		printOut(cmd, "Welcome, "+s.Auth.State().User.FirstName+"!")
		return nil
	}),
}

var verifyInvitationCmd = &cobra.Command{
	Use:   "verify-invitation [code]",
	Short: "Check an invitation code",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(false, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		v, err := s.Auth.VerifyInvitation(ctx, args[0])
		if err != nil {
			return err
		}
		if !v.Valid {
			printOut(cmd, tui.ErrorText("Invalid invitation code"))
			return nil
		}
		printOut(cmd, fmt.Sprintf("Valid: %s, %s", v.OrganizationName, v.BuildingName))
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget stored credentials",
	Args:  cobra.NoArgs,
	RunE: withSession(false, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if !s.Auth.State().IsAuthenticated() {
			printOut(cmd, "Not logged in")
			return nil
		}
		s.Auth.Logout(ctx)
		printOut(cmd, "Logged out")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in resident",
	Args:  cobra.NoArgs,
	RunE:  withSession(true, showProfile),
}

func showProfile(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
	user := s.Auth.State().User
	org, err := s.Source.GetOrganization(ctx)
	if err != nil {
		logger.Debug("Organization unavailable: %v", err)
		org = nil
	}
	printOut(cmd, tui.Profile(*user, org))
	return nil
}
