package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"komun/internal/client/api"
	"komun/internal/client/app"
	"komun/internal/client/config"
	"komun/internal/client/logger"
	"komun/internal/client/tui"
	apperrors "komun/internal/errors"
	"komun/internal/sentry"
)

var rootCmd = &cobra.Command{
	Use:           "komun",
	Short:         "Your residential community from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// BaseURL should be injected via ldflags. Config and KOMUN_BASE_URL win over it.
var BaseURL = ""

// Version is the build version, shown in the User-Agent and reported to Sentry.
var Version = "dev"

var (
	verboseFlag bool
	fixtureFlag bool
)

// errNotLoggedIn is returned by commands that need a session.
var errNotLoggedIn = errors.New("not logged in. Run 'komun login' first")

func Init(baseURL, version string) {
	if baseURL != "" {
		BaseURL = baseURL
	}
	if version != "" {
		Version = version
	}

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log requests and background activity")
	rootCmd.PersistentFlags().BoolVar(&fixtureFlag, "fixture", false, "Use the built-in demo community instead of the API")
	rootCmd.Version = Version

	rootCmd.AddCommand(loginCmd, registerCmd, verifyInvitationCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(feedCmd, postCmd)
	rootCmd.AddCommand(channelsCmd, messagesCmd, chatCmd)
	rootCmd.AddCommand(residentsCmd, blockedCmd, blockCmd, unblockCmd, reportCmd)
	rootCmd.AddCommand(profileCmd, notificationsCmd)
	rootCmd.AddCommand(configCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	sentry.Flush()

	if err != nil {
		fmt.Fprintln(os.Stderr, tui.ErrorText(apperrors.UserMessage(err, err.Error())))
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if BaseURL != "" && cfg.BaseURL == api.DefaultBaseURL {
		cfg.BaseURL = BaseURL
	}
	if fixtureFlag {
		cfg.DataSource = config.SourceFixture
	}
	if verboseFlag {
		cfg.Verbose = true
	}
	return cfg, nil
}

type sessionFunc func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error

// withSession opens a session, restores the stored login and runs fn.
// With requireAuth, fn only runs for a signed-in user.
func withSession(requireAuth bool, fn sessionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.SetVerbose(cfg.Verbose)
		if err := sentry.Init(cfg.SentryDSN, "komun@"+Version); err != nil {
			logger.Warn("Sentry disabled: %v", err)
		}

		s, err := app.Open(cfg, app.WithUserAgent("komun-cli/"+Version))
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close session: %v", err)
			}
		}()

		ctx := cmd.Context()
		if err := s.Auth.Initialize(ctx); err != nil {
			return err
		}
		if requireAuth && !s.Auth.State().IsAuthenticated() {
			return errNotLoggedIn
		}

		if err := fn(ctx, s, cmd, args); err != nil {
			s.Check(err)
			sentry.Report(err, "komun "+cmd.CommandPath())
			return err
		}
		return nil
	}
}

// prompter asks for values missing from flags, one line each.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}

// value returns v, or reads it after printing label when v is empty.
func (p *prompter) value(v, label string) (string, error) {
	if v != "" {
		return v, nil
	}
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printOut(cmd *cobra.Command, a ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), a...)
}
