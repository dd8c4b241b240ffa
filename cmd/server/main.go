package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"allergystats/internal/feeds"
	"allergystats/internal/feeds/cache"
	feedmetrics "allergystats/internal/feeds/metrics"
	"allergystats/internal/feeds/setup"
	"allergystats/internal/platform/config"
	"allergystats/internal/platform/httpserver"
	"allergystats/internal/platform/logger"
	"allergystats/internal/platform/metrics"
	"allergystats/internal/platform/redis"
	reporthandler "allergystats/internal/report/handler"
	reportmetrics "allergystats/internal/report/metrics"
	reportservice "allergystats/internal/report/service"
	"allergystats/internal/stats"
	httptransport "allergystats/internal/transport/http"
	"allergystats/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Statistics live in internal/stats.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	source, err := setup.Open(cfg.Feeds, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open feed source: %w", err)
	}
	defer source.Close()

	checks := map[string]func(context.Context) error{}
	if source.DB() != nil {
		checks["postgres"] = source.Ping
	}

	loaderOpts := []feeds.LoaderOption{
		feeds.WithLogger(log),
		feeds.WithMetrics(feedmetrics.New()),
		feeds.WithTimeout(cfg.Feeds.Timeout),
		feeds.WithBreaker(circuit.New("data-service",
			circuit.WithFailureThreshold(cfg.Feeds.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.Feeds.SuccessThreshold),
		)),
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
		loaderOpts = append(loaderOpts, feeds.WithCache(cache.NewRedisCache(redisClient.Client), cfg.Feeds.CacheTTL))
		log.Info("feed cache: redis", "ttl", cfg.Feeds.CacheTTL.String())
	} else {
		loaderOpts = append(loaderOpts, feeds.WithCache(cache.NewMemoryCache(time.Minute), cfg.Feeds.CacheTTL))
		log.Info("feed cache: in-process", "ttl", cfg.Feeds.CacheTTL.String())
	}

	loader, err := feeds.NewLoader(source, loaderOpts...)
	if err != nil {
		return err
	}

	policy, err := stats.PolicyForMode(cfg.StatsMode)
	if err != nil {
		return err
	}
	serviceOpts := []reportservice.Option{
		reportservice.WithLogger(log),
		reportservice.WithMetrics(reportmetrics.New()),
		reportservice.WithPolicy(policy),
	}
	if cfg.ConcurrentReducers {
		serviceOpts = append(serviceOpts, reportservice.WithConcurrentReducers())
	}
	reports, err := reportservice.New(loader, serviceOpts...)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:         log,
		Metrics:        metrics.New(),
		AllowedOrigins: cfg.AllowedOrigins,
		API:            []httptransport.Registrar{reporthandler.New(reports, log)},
		Checks:         checks,
	})
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting allergystats",
			"addr", cfg.Addr,
			"feed_source", cfg.Feeds.Source,
			"stats_mode", cfg.StatsMode,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
