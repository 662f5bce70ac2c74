package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/shelf/internal/mockapi"
	"github.com/mesh-intelligence/shelf/internal/paths"
	"github.com/mesh-intelligence/shelf/internal/sqlite"
)

const (
	envMockSecret   = "SHELF_MOCK_SECRET"
	shutdownTimeout = 5 * time.Second
)

var errNoMockPassword = errors.New("serve-mock needs --admin-password or " + envPassword)

func newServeMockCmd(a *app) *cobra.Command {
	var (
		addr          string
		dataDir       string
		secret        string
		adminEmail    string
		adminPassword string
		tokenTTL      time.Duration
		seed          bool
	)
	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Run the development admin API backed by local JSONL files",
		Long: `serve-mock serves the admin REST API on --addr with JWT login, keeping every
resource in a SQLite index rebuilt from JSONL files in the data directory.
Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if adminEmail == "" {
				adminEmail = a.config.GetString(cfgKeyAdminEmail)
			}
			if adminPassword == "" {
				adminPassword = os.Getenv(envPassword)
			}
			if adminPassword == "" {
				return userError(errNoMockPassword)
			}
			if secret == "" {
				secret = os.Getenv(envMockSecret)
			}
			if secret == "" {
				secret = adminPassword
				a.logger.Warn("no signing secret set; tokens are signed with the admin password")
			}

			dir, err := paths.ResolveDataDir(dataDir, a.config.GetString(cfgKeyDataDir))
			if err != nil {
				return systemError(fmt.Errorf("resolve data dir: %w", err))
			}
			opts := []sqlite.Option{sqlite.WithLogger(a.logger)}
			if seed {
				opts = append(opts, sqlite.WithSampleData())
			}
			backend, err := sqlite.Open(dir, opts...)
			if err != nil {
				return systemError(fmt.Errorf("open data dir: %w", err))
			}
			defer backend.Close()

			srv, err := mockapi.New(backend, mockapi.Config{
				AdminEmail:    adminEmail,
				AdminPassword: adminPassword,
				Secret:        secret,
				TokenTTL:      tokenTTL,
			}, mockapi.WithLogger(a.logger))
			if err != nil {
				return userError(err)
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return systemError(fmt.Errorf("listen: %w", err))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, a.logger, ln, srv.Handler(), dir)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default: data_dir from config, then platform data dir)")
	cmd.Flags().StringVar(&secret, "secret", "", "token signing secret (default: $"+envMockSecret+")")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "accepted login email (default: admin_email from config)")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "accepted login password (default: $"+envPassword+")")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", mockapi.DefaultTokenTTL, "lifetime of issued tokens")
	cmd.Flags().BoolVar(&seed, "seed", false, "fill empty resources with the sample catalogue")
	return cmd
}

// serve runs handler on ln until ctx is cancelled, then shuts down
// gracefully.
func serve(ctx context.Context, cmd *cobra.Command, logger *zap.Logger, ln net.Listener, handler http.Handler, dataDir string) error {
	hs := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving admin API on http://%s (data: %s)\n", ln.Addr(), dataDir)
	logger.Info("serving", zap.String("addr", ln.Addr().String()), zap.String("data_dir", dataDir))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return systemError(fmt.Errorf("serve: %w", err))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return systemError(fmt.Errorf("shutdown: %w", err))
	}
	logger.Info("server stopped")
	fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")
	return nil
}
