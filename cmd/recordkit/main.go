package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/realtime-ai/recordkit/pkg/config"
	"github.com/realtime-ai/recordkit/pkg/metrics"
	"github.com/realtime-ai/recordkit/pkg/trace"
)

// app carries what every subcommand needs after setup.
type app struct {
	cfg     config.Config
	metrics *metrics.Metrics
	server  *http.Server
}

func rootCommand(a *app) *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "recordkit",
		Short:         "Record and play back PCM audio through a ring buffer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return a.setup(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to a .env file")

	rootCmd.AddCommand(recordCommand(a), playCommand(a), editCommand(), infoCommand())
	return rootCmd
}

func (a *app) setup(ctx context.Context) error {
	if err := trace.Initialize(ctx, a.cfg.Trace); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}
	a.metrics = m

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		a.server = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}
		go func() {
			log.Printf("Metrics server listening on %s", a.cfg.MetricsAddr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}
	return nil
}

// teardown is safe to call whether or not setup ran.
func (a *app) teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
		a.server = nil
	}
	if err := trace.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown tracing: %v", err)
	}
	return errors.Join(errs...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := rootCommand(a).ExecuteContext(ctx)
	if terr := a.teardown(); terr != nil {
		log.Printf("Shutdown error: %v", terr)
	}
	if err != nil {
		log.Printf("recordkit: %v", err)
		stop()
		os.Exit(1)
	}
}
