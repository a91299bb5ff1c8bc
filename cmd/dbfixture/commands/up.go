package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/dbfixture/internal/fixture"
	"github.com/tphakala/dbfixture/internal/logger"
	"github.com/tphakala/dbfixture/internal/observability/metrics"
	"github.com/tphakala/dbfixture/internal/testutil/containers"
)

type upOptions struct {
	key         string
	metricsAddr string
}

func newUpCommand(root *options) *cobra.Command {
	opts := &upOptions{}

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start the database and keep it running until interrupted",
		Long: `Start the database container, wait until it accepts connections and seed
the admin API key. The connection URL and key are printed to stdout. The
container is removed on SIGINT or SIGTERM.

If --key is not given a random key is generated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUp(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.key, "key", "", "API key to seed (default: random UUID)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")

	return cmd
}

func runUp(cmd *cobra.Command, root *options, opts *upOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	fm, err := metrics.NewFixtureMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	f, err := fixture.New(root.settings,
		fixture.WithLogger(root.log),
		fixture.WithMetrics(fm))
	if err != nil {
		return err
	}

	key := opts.key
	if key == "" {
		key = uuid.NewString()
	}

	c, err := f.Start(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// ctx is already cancelled on shutdown; Stop applies stop_timeout itself.
		if err := f.Stop(context.Background()); err != nil {
			root.log.Error("failed to stop fixture", logger.Error(err))
		}
	}()

	if err := f.AwaitReady(ctx); err != nil {
		return err
	}
	if err := f.InitAuth(ctx, key); err != nil {
		return err
	}

	// The driver reports connected; confirm the mapping is reachable from here too.
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = containers.WaitForTCP(probeCtx, c.Host(), c.MappedPort(), root.settings.ReadyInterval.Std())
	cancel()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s=%s\n", root.settings.URLKey, f.URL())
	fmt.Fprintf(out, "API_KEY=%s\n", key)
	fmt.Fprintf(out, "CONTAINER_ID=%s\n", c.ID())

	g, gctx := errgroup.WithContext(ctx)
	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			root.log.Info("serving metrics", logger.String("addr", opts.metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		root.log.Info("shutting down")
		return nil
	})

	return g.Wait()
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}
