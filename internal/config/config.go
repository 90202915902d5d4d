package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds the runtime configuration of the exam session gateway.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"ielts-practice"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Backend  Backend
	Redis    Redis
	Security Security
	Exam     Exam
	CORS     CORS
}

// Backend locates the exam REST backend.
type Backend struct {
	BaseURL     string        `env:"BACKEND_BASE_URL,notEmpty"`
	HTTPTimeout time.Duration `env:"BACKEND_HTTP_TIMEOUT" envDefault:"10s"`
	// FetchConcurrency bounds parallel per-section question fetches.
	FetchConcurrency int `env:"BACKEND_FETCH_CONCURRENCY" envDefault:"4"`
}

// Redis holds the structure cache configuration. An empty address disables it.
type Redis struct {
	Addr     string        `env:"REDIS_ADDR"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	PoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"20"`
	TTL      time.Duration `env:"STRUCTURE_CACHE_TTL" envDefault:"10m"`
}

// Security stores the access-token settings shared with the backend.
type Security struct {
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	JWTIssuer string        `env:"JWT_ISSUER"`
	JWTLeeway time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`
}

// Exam groups session defaults.
type Exam struct {
	ListeningReadingDuration time.Duration `env:"EXAM_DURATION" envDefault:"20m"`
	WritingDuration          time.Duration `env:"WRITING_DURATION" envDefault:"30m"`
	TickInterval             time.Duration `env:"EXAM_TICK_INTERVAL" envDefault:"1s"`
	SubmitTimeout            time.Duration `env:"EXAM_SUBMIT_TIMEOUT" envDefault:"15s"`
	AutoPlayAudio            bool          `env:"EXAM_AUTOPLAY_AUDIO" envDefault:"true"`
}

// CORS restricts which browser origins may open exam sockets. Native clients
// send no Origin header and are always accepted.
type CORS struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) validate() error {
	if c.Exam.ListeningReadingDuration <= 0 || c.Exam.WritingDuration <= 0 {
		return fmt.Errorf("exam durations must be positive")
	}
	if c.Exam.TickInterval <= 0 {
		return fmt.Errorf("EXAM_TICK_INTERVAL must be positive")
	}
	if c.Backend.FetchConcurrency <= 0 {
		return fmt.Errorf("BACKEND_FETCH_CONCURRENCY must be positive")
	}
	return nil
}
