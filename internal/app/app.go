package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/ielts-practice/internal/auth"
	"github.com/gokatarajesh/ielts-practice/internal/auth/jwt"
	"github.com/gokatarajesh/ielts-practice/internal/backend"
	"github.com/gokatarajesh/ielts-practice/internal/config"
	"github.com/gokatarajesh/ielts-practice/internal/gateway"
	"github.com/gokatarajesh/ielts-practice/internal/logging"
	"github.com/gokatarajesh/ielts-practice/internal/metrics"
	"github.com/gokatarajesh/ielts-practice/internal/server"
	"github.com/gokatarajesh/ielts-practice/internal/session"
	ws "github.com/gokatarajesh/ielts-practice/pkg/http/ws"
)

// Application aggregates shared infrastructure (cache, socket hub, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis *redis.Client
	hub   *ws.Hub
	http  *http.Server
}

// New bootstraps the logger, metrics, Redis, the backend client and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	collector := metrics.New(prometheus.DefaultRegisterer)

	var redisClient *redis.Client
	var structureCache backend.StructureCache
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable yet; structure cache will retry per request")
		}
		structureCache = backend.NewRedisCache(redisClient, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; exam structure cache disabled")
	}

	if cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("authentication must be configured (set JWT_SECRET)")
	}
	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Security.JWTIssuer,
		Leeway: cfg.Security.JWTLeeway,
	})
	requireAuth := auth.Middleware(tokens, logger)

	client := backend.NewClient(cfg.Backend.BaseURL, &http.Client{Timeout: cfg.Backend.HTTPTimeout}, collector)
	hub := ws.NewHub(logger)

	sessions := gateway.NewHandler(client, structureCache, hub, server.NewUpgrader(cfg.CORS.AllowedOrigins), gateway.Options{
		Session: session.Options{
			Duration:      cfg.Exam.ListeningReadingDuration,
			TickInterval:  cfg.Exam.TickInterval,
			AutoPlay:      cfg.Exam.AutoPlayAudio,
			SubmitTimeout: cfg.Exam.SubmitTimeout,
			Metrics:       collector,
		},
		WritingDuration: cfg.Exam.WritingDuration,
		Loader:          backend.LoaderOptions{Concurrency: cfg.Backend.FetchConcurrency},
	}, logger)

	results := gateway.NewHTTPHandlers(func(token string) gateway.ResultsSource {
		return client.WithToken(token)
	}, logger)

	apiServer := server.NewHTTPServer(cfg, logger, redisClient, prometheus.DefaultGatherer, server.Routes{
		ExamSocket: requireAuth(http.HandlerFunc(sessions.HandleWebSocket)),
		Score:      requireAuth(http.HandlerFunc(results.GetScore)),
		Answers:    requireAuth(http.HandlerFunc(results.GetAnswers)),
	})

	return &Application{
		cfg:    cfg,
		logger: logger,
		redis:  redisClient,
		hub:    hub,
		http:   apiServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	// Hijacked exam sockets are not tracked by the server; closing them ends
	// each session's read loop, which closes the session.
	a.logger.Info().Int("sessions", a.hub.Count()).Msg("closing exam sockets")
	a.hub.CloseAll()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
