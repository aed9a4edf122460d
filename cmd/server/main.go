// Command server runs the CivicPulse opinion-sampling service: it loads the
// persona population, wires the question pipeline, and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civicpulse/civicpulse/internal/ask"
	askhandler "github.com/civicpulse/civicpulse/internal/ask/handler"
	"github.com/civicpulse/civicpulse/internal/cohort"
	cohortstore "github.com/civicpulse/civicpulse/internal/cohort/store"
	"github.com/civicpulse/civicpulse/internal/diag"
	"github.com/civicpulse/civicpulse/internal/events"
	"github.com/civicpulse/civicpulse/internal/fanout"
	"github.com/civicpulse/civicpulse/internal/persona"
	"github.com/civicpulse/civicpulse/internal/platform/config"
	"github.com/civicpulse/civicpulse/internal/platform/httpserver"
	"github.com/civicpulse/civicpulse/internal/platform/logger"
	"github.com/civicpulse/civicpulse/internal/platform/metrics"
	"github.com/civicpulse/civicpulse/internal/platform/middleware"
	"github.com/civicpulse/civicpulse/internal/platform/postgres"
	platformredis "github.com/civicpulse/civicpulse/internal/platform/redis"
	"github.com/civicpulse/civicpulse/internal/ratelimit"
	"github.com/civicpulse/civicpulse/internal/reply"
	"github.com/civicpulse/civicpulse/internal/reply/providers"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogJSON)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The persona dataset is mandatory; nothing can be answered without it.
	source := persona.NewSource(cfg.PersonaDataPath, cfg.AreaProfilePath)
	store, err := source.Load()
	if err != nil {
		return err
	}
	if store.Degraded() {
		log.Warn("area profiles missing, replies will lack neighborhood context",
			"path", cfg.AreaProfilePath)
	}
	log.Info("persona dataset loaded",
		"personas", store.Len(),
		"areas", len(store.Options().PlanningAreas))

	m := metrics.New()

	provs, err := buildProviders(ctx, cfg)
	if err != nil {
		return err
	}
	generator, err := reply.NewGenerator(log, provs,
		reply.WithAttempts(cfg.RetryAttempts),
		reply.WithCallTimeout(cfg.ProviderTimeout),
		reply.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	orchestrator := fanout.New(log, generator, int(cfg.MaxInFlight), m)

	cohorts, cleanup, err := buildCohortStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	sink, err := buildEventSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	inbox := make(chan events.AskEvent, 1024)
	worker := events.NewWorker(log, sink, inbox)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("event worker stopped", "error", err)
		}
	}()

	recorder := diag.NewRecorder(0)
	service := ask.NewService(ask.Params{
		Store:           store,
		Sampler:         cohort.NewSampler(rand.New(rand.NewSource(time.Now().UnixNano()))),
		Orchestrator:    orchestrator,
		Cohorts:         cohorts,
		Recorder:        recorder,
		Emitter:         events.NewEmitter(log, inbox),
		Metrics:         m,
		Logger:          log,
		MinQuorum:       cfg.MinQuorum,
		CohortMinQuorum: cfg.CohortMinQuorum,
	})

	router := buildRouter(ctx, cfg, log, m, service, store, generator, recorder)
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildProviders constructs every configured provider, Gemini first. At
// least one key must be present; failing at startup beats failing on the
// first question.
func buildProviders(ctx context.Context, cfg config.Config) ([]providers.Provider, error) {
	var provs []providers.Provider
	if cfg.GeminiAPIKey != "" {
		gemini, err := providers.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		provs = append(provs, gemini)
	}
	if cfg.OpenAIAPIKey != "" {
		openai, err := providers.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		provs = append(provs, openai)
	}
	if len(provs) == 0 {
		return nil, errors.New("no model provider configured: set GEMINI_API_KEY or OPENAI_API_KEY")
	}
	return provs, nil
}

// buildCohortStore picks the richest configured backend: postgres, then
// redis, then in-memory.
func buildCohortStore(ctx context.Context, cfg config.Config, log *slog.Logger) (cohort.Store, func(), error) {
	noop := func() {}

	if cfg.PostgresURL != "" {
		db, err := postgres.Open(cfg.PostgresURL)
		if err != nil {
			return nil, noop, err
		}
		pg := cohortstore.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		log.Info("cohort store: postgres")
		return pg, func() { db.Close() }, nil
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, noop, err
	}
	if redisClient != nil {
		log.Info("cohort store: redis")
		return cohortstore.NewRedis(redisClient.Client), func() { redisClient.Close() }, nil
	}

	log.Info("cohort store: memory")
	return cohortstore.NewMemory(), noop, nil
}

// buildEventSink connects to Kafka when brokers are configured, otherwise
// keeps events in memory.
func buildEventSink(ctx context.Context, cfg config.Config, log *slog.Logger) (events.Sink, error) {
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := events.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		log.Info("event sink: kafka", "topic", cfg.KafkaTopic)
		return sink, nil
	}
	log.Info("event sink: memory")
	return events.NewMemorySink(), nil
}

func buildRouter(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics,
	service *ask.Service, store *persona.Store, generator *reply.Generator, recorder *diag.Recorder) http.Handler {

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.ClientIdentity)

	r.Handle("/metrics", promhttp.Handler())

	health := func() askhandler.Health {
		return askhandler.Health{
			PersonaCount:     store.Len(),
			ProfilesDegraded: store.Degraded(),
			ProviderHealthy:  generator.Healthy(),
		}
	}
	public := askhandler.New(log, service, health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		// Just under the server write timeout, so a stuck fan-out surfaces
		// as a JSON timeout body instead of a dropped connection.
		r.Use(middleware.Timeout(170 * time.Second))
		if !cfg.RateLimitDisabled {
			limiter := ratelimit.New(cfg.RateLimitPerMinute, time.Minute)
			go limiter.Sweep(ctx, 5*time.Minute)
			r.Use(ratelimit.Middleware(limiter, log, m))
		}
		public.Register(r)
	})

	debug := diag.NewHandler(log, recorder, cfg.JWTSigningKey, cfg.AdminSecretHash)
	debug.Register(r)

	return r
}
