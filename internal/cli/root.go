// Package cli implements the shelf command-line interface: a cobra command
// tree over the admin page controller, configured through viper and logging
// through zap.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/shelf/internal/paths"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	baseURL   string
	jsonMode  bool
	verbose   bool
}

// app is the state shared by one execution of the command tree.
type app struct {
	flags     rootFlags
	configDir string
	config    *viper.Viper
	logger    *zap.Logger
	// in is where confirmations and passwords are read from.
	in     io.Reader
	reader *bufio.Reader
}

// NewRootCmd creates the top-level "shelf" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "shelf",
		Short: "Administer a storefront catalogue",
		Long: "shelf manages the products, categories, banners, testimonials, users,\n" +
			"orders and \"why choose us\" items of a storefront through its admin API.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.baseURL, "base-url", "", "storefront backend URL (overrides config)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newResourcesCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newToggleStatusCmd(a),
		newExportCmd(a),
		newReceiptCmd(a),
		newDashboardCmd(a),
		newServeMockCmd(a),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shelf:", types.Message(err))
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// setup resolves the config directory, loads config.yaml and builds the
// logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.in = cmd.InOrStdin()
	if cmd.Name() == "version" {
		return nil
	}
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return systemError(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = dir

	v, err := loadConfig(dir)
	if err != nil {
		return systemError(err)
	}
	if a.flags.baseURL != "" {
		v.Set(cfgKeyBaseURL, a.flags.baseURL)
	}
	a.config = v

	logger, err := newLogger(v.GetString(cfgKeyLogLevel), a.flags.verbose, cmd.ErrOrStderr())
	if err != nil {
		return userError(err)
	}
	a.logger = logger.With(zap.String("command", cmd.Name()))
	a.logger.Debug("configuration loaded", zap.String("config_dir", dir), zap.String("base_url", v.GetString(cfgKeyBaseURL)))
	return nil
}

// exitError carries an explicit exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error   { return &exitError{code: exitUserError, err: err} }
func systemError(err error) error { return &exitError{code: exitSysError, err: err} }

// exitCode maps err to the process exit code. Mistakes the user can fix
// (bad input, unknown records, missing login) exit 1; failures of the
// network, the backend or the local system exit 2.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch {
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrUnknownResource),
		errors.Is(err, types.ErrUnauthorized),
		errors.Is(err, types.ErrNotSupported),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrGateBusy),
		errors.Is(err, types.ErrNoSession):
		return exitUserError
	case errors.Is(err, types.ErrNetwork), errors.Is(err, types.ErrBackend):
		return exitSysError
	default:
		return exitUserError
	}
}
