package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/ielts-practice/internal/config"
	"github.com/gokatarajesh/ielts-practice/internal/logging"
	httperrors "github.com/gokatarajesh/ielts-practice/pkg/http/errors"
)

// NewUpgrader builds the WebSocket upgrader. Requests without an Origin header
// (native clients) are accepted; browser origins must be listed unless the
// list is empty.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// Routes are the authenticated handlers mounted by NewHTTPServer.
type Routes struct {
	ExamSocket http.Handler
	Score      http.Handler
	Answers    http.Handler
}

// NewHTTPServer wires base routes (health, readiness, metrics) and the exam
// routes. redis may be nil when the structure cache is disabled.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, redis *redis.Client, gatherer prometheus.Gatherer, routes Routes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.IntoContext(r.Context(), logger)
		if err := pingDependencies(ctx, redis); err != nil {
			ctxLogger := logging.FromContext(ctx)
			ctxLogger.Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondServiceUnavailable(w, "Structure cache unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if routes.ExamSocket != nil {
		mux.Handle("GET /ws/exams/{examId}", routes.ExamSocket)
	}
	if routes.Score != nil {
		mux.Handle("GET /v1/exams/{examId}/sections/{sectionId}/score", routes.Score)
	}
	if routes.Answers != nil {
		mux.Handle("GET /v1/exams/{examId}/sections/{sectionId}/answers", routes.Answers)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

func pingDependencies(ctx context.Context, redis *redis.Client) error {
	if redis == nil {
		return nil
	}
	return redis.Ping(ctx).Err()
}
