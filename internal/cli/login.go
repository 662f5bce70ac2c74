package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/mesh-intelligence/shelf/internal/auth"
	"github.com/mesh-intelligence/shelf/internal/restapi"
)

// envPassword supplies the login password non-interactively.
const envPassword = "SHELF_ADMIN_PASSWORD"

var errNoEmail = errors.New("no email given (use --email or set admin_email)")

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the admin API and save the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				email = a.config.GetString(cfgKeyAdminEmail)
			}
			if email == "" {
				return userError(errNoEmail)
			}
			if password == "" {
				password = os.Getenv(envPassword)
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := a.readPassword(cmd.ErrOrStderr())
				if err != nil {
					return userError(fmt.Errorf("read password: %w", err))
				}
				password = line
			}

			cfg, err := clientConfig(a.config)
			if err != nil {
				return userError(err)
			}
			c, err := restapi.New(cfg, restapi.WithLogger(a.logger))
			if err != nil {
				return userError(err)
			}
			token, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			expires, err := auth.NewStore(a.configDir).Save(token)
			if err != nil {
				return systemError(fmt.Errorf("save token: %w", err))
			}
			a.logger.Info("logged in", zap.String("email", email), zap.Time("expires", expires))
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (session expires %s)\n", email, expires.Format("2006-01-02 15:04"))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email (default: admin_email from config)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (default: $"+envPassword+" or prompt)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := auth.NewStore(a.configDir).Clear(); err != nil {
				return systemError(fmt.Errorf("clear token: %w", err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

// readPassword reads a password without echo when the input is a terminal,
// and falls back to a plain line read for piped input.
func (a *app) readPassword(echo io.Writer) (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(echo)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return a.readLine()
}

// readLine reads one line from the app's input, without the line ending.
func (a *app) readLine() (string, error) {
	if a.reader == nil {
		a.reader = bufio.NewReader(a.in)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
