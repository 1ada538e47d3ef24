package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"quizgram/internal/config"
	"quizgram/internal/database"
	"quizgram/internal/handler"
	"quizgram/internal/logging"
	"quizgram/internal/metrics"
	"quizgram/internal/queue"
	"quizgram/internal/redis"
	"quizgram/internal/repository"
	"quizgram/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	streamMaxLen    = 10000
)

// Backends are the stores behind the services. Memory stores are used for
// anything not configured.
type Backends struct {
	Relationships repository.RelationshipRepository
	Views         repository.ViewCountRepository
	Publisher     queue.Publisher

	closers []func() error
}

// Close releases database and Redis connections.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// OpenBackends connects postgres when DB_HOST is set and Redis when
// REDIS_URL is set.
func OpenBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	logger := logging.Component("Server")
	b := &Backends{
		Relationships: repository.NewMemoryRelationshipRepository(),
		Views:         repository.NewMemoryViewCountRepository(),
	}

	if cfg.UsePostgres() {
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := database.Migrate(ctx, db); err != nil {
			b.Close()
			return nil, err
		}
		b.Relationships = repository.NewRelationshipRepository(db)
	} else {
		logger.Warn("DB_HOST not set, relationships kept in memory")
	}

	if cfg.RedisURL != "" {
		rc, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, rc.Close)
		b.Views = repository.NewRedisViewCountRepository(rc.Client)
		b.Publisher = queue.NewPublisher(rc.Client, streamMaxLen)
	} else {
		logger.Warn("REDIS_URL not set, view counts kept in memory and events not published")
	}

	return b, nil
}

// NewHandler builds the full HTTP handler over the given backends.
func NewHandler(cfg *config.Config, b *Backends, reg *prometheus.Registry) stdhttp.Handler {
	m := metrics.New(reg)

	relationshipService := service.NewRelationshipService(b.Relationships, b.Publisher, m)
	viewService := service.NewViewService(b.Views, b.Publisher, m)

	router := NewRouter(RouterConfig{
		RelationshipHandler: handler.NewRelationshipHandler(relationshipService),
		ViewHandler:         handler.NewViewHandler(viewService),
		JWTSecret:           cfg.JWTSecret,
		Gatherer:            reg,
	})

	return otelhttp.NewHandler(router, "quizgram")
}

// Run serves the reference backend until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := logging.Component("Server")

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	backends, err := OpenBackends(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}
	defer backends.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           NewHandler(cfg, backends, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "postgres", cfg.UsePostgres(), "redis", cfg.RedisURL != "")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
