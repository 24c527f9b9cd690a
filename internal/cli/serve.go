// internal/cli/serve.go
package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/app"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine behind the HTTP API",
		Long: `Run the bond engine with its HTTP API, Prometheus metrics, snapshot
scheduler and storage until SIGINT or SIGTERM.

Examples:
  bondctl serve
  bondctl serve --config musing.yaml --addr 127.0.0.1:9090
  MUSING_STORAGE_DRIVER=sqlite MUSING_STORAGE_DSN=file:bond.db bondctl serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}

	log, err := opts.newLogger(cfg.Log.File, cfg.Log.Debug)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	defer log.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log.WithOperation("serve"))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("address %s is busy or unavailable", cfg.HTTP.Addr), err)
	}

	log.Info("Starting bond engine", zap.String("addr", ln.Addr().String()))
	if err := a.Run(ctx, ln); err != nil {
		return err
	}
	log.Info("Bond engine stopped")
	return nil
}
