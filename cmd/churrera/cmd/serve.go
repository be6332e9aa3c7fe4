package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/churrera-dev/churrera/internal/api"
	"github.com/churrera-dev/churrera/internal/diagnostics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Advance all unfinished jobs in the background",
	Long: `Run the scheduler, which sweeps every unfinished job once per polling
interval, together with a read-only HTTP API exposing job status, an event
stream and Prometheus metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "API listen address (default from config)")
	_ = viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	opts := []api.ServerOption{
		api.WithLogger(a.logger.Slog()),
		api.WithEventBus(a.bus),
		api.WithGatherer(a.registry),
	}

	g, ctx := errgroup.WithContext(ctx)
	if mc := a.cfg.Serve.Monitor; mc.Enabled {
		monitor := diagnostics.NewMonitor(diagnostics.Config{
			Interval:           mc.Interval,
			GoroutineThreshold: mc.GoroutineThreshold,
			MemoryThresholdMB:  mc.MemoryThresholdMB,
		}, a.registry, a.logger.Slog().With("component", "monitor"))
		opts = append(opts, api.WithResources(monitor))
		g.Go(func() error {
			return monitor.Run(ctx)
		})
	}
	server := api.NewServer(a.repo, opts...)

	g.Go(func() error {
		return a.engine.Scheduler.Run(ctx)
	})
	g.Go(func() error {
		return server.ListenAndServe(ctx, a.cfg.Serve.Addr)
	})
	return g.Wait()
}
