package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/api"
	"github.com/xraph/smsrelay/event"
	eventredis "github.com/xraph/smsrelay/event/redis"
	"github.com/xraph/smsrelay/internal/config"
	"github.com/xraph/smsrelay/internal/server"
	"github.com/xraph/smsrelay/observability"
	"github.com/xraph/smsrelay/store/memory"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	var publisher event.Publisher = event.Nop{}
	if cfg.RedisURL != "" {
		pub, openErr := eventredis.Open(cfg.RedisURL, cfg.EventChannelPrefix)
		if openErr != nil {
			return openErr
		}
		defer pub.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr := pub.Ping(pingCtx)
		cancel()
		if pingErr != nil {
			return fmt.Errorf("redis: ping: %w", pingErr)
		}
		publisher = pub
		logger.Info("publishing events to redis", "prefix", cfg.EventChannelPrefix)
	}

	var tp trace.TracerProvider
	if cfg.TracesExporter == config.TracesStdout {
		sdkProvider, tpErr := observability.NewStdoutProvider(os.Stdout)
		if tpErr != nil {
			return tpErr
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := sdkProvider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("tracer provider shutdown failed", "error", err)
			}
		}()
		tp = sdkProvider
		logger.Info("exporting traces to stdout")
	}

	r, err := smsrelay.New(
		smsrelay.WithStore(memory.New()),
		smsrelay.WithConfig(cfg.Relay),
		smsrelay.WithLogger(logger),
		smsrelay.WithMetrics(metrics),
		smsrelay.WithPublisher(publisher),
		smsrelay.WithTracer(observability.NewTracer(tp)),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	handler := api.NewHandler(r, cfg.API, logger, api.WithMetrics(metrics))

	srv := server.New(cfg.Server, handler, logger,
		server.WithMetrics(cfg.MetricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
		server.WithLimiterPruning(handler.Limiter(), cfg.API.RateLimitWindow),
	)
	return srv.Start(ctx)
}
