// Package main provides the gizmo CLI.
//
// gizmo runs scripts against a Gremlin Server, compiles and applies YAML
// batches through the mapper, and inspects or replays the flush journal.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orneryd/gizmo/pkg/config"
	"github.com/orneryd/gizmo/pkg/journal"
	"github.com/orneryd/gizmo/pkg/logging"
	"github.com/orneryd/gizmo/pkg/metrics"
	"github.com/orneryd/gizmo/pkg/pool"
	"github.com/orneryd/gizmo/pkg/transport"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := newRootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gizmo",
		Short: "gizmo - object-to-graph mapper for Gremlin servers",
		Long: `gizmo batches entity changes into single Gremlin scripts.

Commands:
  exec     run a raw script
  compile  print the script a YAML batch compiles to
  apply    compile a YAML batch and flush it
  journal  inspect and replay flushed batches`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file (GIZMO_* variables override it)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gizmo v%s (%s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(newExecCmd(), newCompileCmd(), newApplyCmd(), newJournalCmd())
	return rootCmd
}

// runtime is the per-invocation wiring shared by commands.
type runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	server   *http.Server
}

func setup(cmd *cobra.Command) (*runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	log := logging.New(cfg.Logging.Level, logging.ParseFormat(cfg.Logging.Format))
	pool.Configure(pool.PoolConfig{Enabled: cfg.Pool.Enabled, MaxBuilderSize: cfg.Pool.MaxBuilderSize})

	reg := prometheus.NewRegistry()
	rt := &runtime{cfg: cfg, log: log, registry: reg, metrics: metrics.New(reg)}
	if cfg.Metrics.Address != "" {
		rt.server = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := rt.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}
	log.Named(logging.ComponentCLI).Debug("configured", zap.Stringer("config", cfg))
	return rt, nil
}

func (rt *runtime) client() *transport.Client {
	return transport.New(transport.Options{
		URL:           rt.cfg.Server.URL,
		Username:      rt.cfg.Server.Username,
		Password:      rt.cfg.Server.Password,
		DialTimeout:   rt.cfg.Transport.DialTimeout,
		WriteTimeout:  rt.cfg.Transport.WriteTimeout,
		MaxRetries:    rt.cfg.Transport.MaxRetries,
		RetryInterval: rt.cfg.Transport.RetryInterval,
		Logger:        rt.log.Named(logging.ComponentTransport),
		Metrics:       rt.metrics,
	})
}

// openJournal returns nil when the journal is disabled and force is unset.
func (rt *runtime) openJournal(force bool) (*journal.Journal, error) {
	if !rt.cfg.Journal.Enabled && !force {
		return nil, nil
	}
	return journal.Open(journal.Options{
		Dir:        rt.cfg.Journal.Dir,
		SyncWrites: rt.cfg.Journal.SyncWrites,
		Logger:     rt.log.Named(logging.ComponentJournal),
	})
}

// requestContext applies the configured request timeout.
func (rt *runtime) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if rt.cfg.Transport.RequestTimeout > 0 {
		return context.WithTimeout(ctx, rt.cfg.Transport.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (rt *runtime) close() {
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.server.Shutdown(ctx)
	}
	_ = rt.log.Sync()
}
