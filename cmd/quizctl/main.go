package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"quizgram/internal/config"
	"quizgram/internal/logging"
	"quizgram/internal/metrics"
	"quizgram/internal/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	err := a.rootCmd().ExecuteContext(ctx)
	a.shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfg     *config.Config
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	tp      *sdktrace.TracerProvider

	dumpMetrics bool
}

func newApp() *app {
	reg := prometheus.NewRegistry()
	return &app{
		cfg:     &config.Config{},
		reg:     reg,
		metrics: metrics.New(reg),
	}
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quizctl",
		Short: "Command line client for the quizgram social API",
		Long: `quizctl drives the quizgram client core against a running backend.

Configuration comes from the environment (or a .env file):
API_BASE_URL, ACCESS_TOKEN, VIEWER_ID, REDIS_URL, JWT_SECRET,
OTEL_EXPORTER_OTLP_ENDPOINT.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logging.Init(cmd.ErrOrStderr(), loaded.LogFormat, loaded.LogLevel)
			*a.cfg = *loaded

			tp, err := tracing.Init(cmd.Context(), "quizctl", loaded.OtelEndpoint)
			if err != nil {
				return err
			}
			a.tp = tp
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !a.dumpMetrics {
				return nil
			}
			return a.writeMetrics(cmd)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&a.dumpMetrics, "metrics", false, "Print client metrics in Prometheus text format after the command")

	rootCmd.AddCommand(
		tokenCmd(a.cfg),
		toggleCmd(a),
		viewCmd(a),
		countsCmd(a),
		watchCmd(a.cfg),
	)

	return rootCmd
}

func (a *app) writeMetrics(cmd *cobra.Command) error {
	families, err := a.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(cmd.OutOrStdout(), expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

// shutdown flushes buffered spans.
func (a *app) shutdown() {
	if a.tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tp.Shutdown(ctx); err != nil {
		slog.Warn("tracer shutdown failed", "error", err)
	}
}
