package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"timekeep/internal/audit"
	"timekeep/internal/live"
	"timekeep/internal/platform/config"
	"timekeep/internal/platform/httpserver"
	"timekeep/internal/platform/logger"
	"timekeep/internal/platform/postgres"
	"timekeep/internal/platform/redis"
	"timekeep/internal/report/cache"
	"timekeep/internal/timer/handler"
	timermetrics "timekeep/internal/timer/metrics"
	"timekeep/internal/timer/service"
	"timekeep/internal/timer/store"
	"timekeep/internal/token"
	"timekeep/pkg/clock"
	"timekeep/pkg/platform/middleware/auth"
	"timekeep/pkg/platform/middleware/requestid"
	"timekeep/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}

	var timers service.TimerStore
	if db != nil {
		timers = store.NewPostgres(db)
		log.Info("using postgres timer store")
	} else {
		timers = store.NewInMemory()
		log.Info("using in-memory timer store")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient == nil {
		log.Info("redis not configured, summary cache disabled")
	}

	publisher, err := buildAuditPublisher(cfg, log)
	if err != nil {
		log.Error("audit publisher setup failed", "error", err)
		os.Exit(1)
	}

	m := timermetrics.New()

	svc, err := service.New(timers,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(publisher),
		service.WithClock(clock.System),
	)
	if err != nil {
		log.Error("service setup failed", "error", err)
		os.Exit(1)
	}

	var summaryClient *cache.SummaryCache
	if redisClient != nil {
		summaryClient = cache.New(redisClient.Client, cfg.SummaryCacheTTL, log)
	} else {
		summaryClient = cache.New(nil, 0, log)
	}

	liveDriver := live.New(svc,
		live.WithClock(clock.System),
		live.WithLogger(log),
		live.WithMetrics(m),
		live.WithIntervals(cfg.DisplayTick, cfg.ReconcileInterval),
	)
	liveHandler := live.NewHandler(liveDriver, log)

	tokens := token.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	h := handler.New(svc, summaryClient, log)

	router := chi.NewRouter()
	router.Use(requestid.Middleware)
	router.Use(requesttime.Middleware(clock.System))

	router.Get("/healthz", healthHandler(db, redisClient))
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, log))
		h.Register(r)
		liveHandler.Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting timekeep", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	if err := publisher.Close(); err != nil {
		log.Warn("audit publisher close failed", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Warn("postgres close failed", "error", err)
		}
	}

	log.Info("shutdown complete")
}

func buildAuditPublisher(cfg config.Config, log *slog.Logger) (audit.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("kafka not configured, audit events kept in memory")
		return audit.NewInMemoryPublisher(), nil
	}
	return audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
}

func healthHandler(db *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
