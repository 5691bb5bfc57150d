package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chatvault/server-go/internal/chat"
	"github.com/chatvault/server-go/internal/chat/sim"
	"github.com/chatvault/server-go/internal/config"
	"github.com/chatvault/server-go/internal/database"
	"github.com/chatvault/server-go/internal/handler"
	"github.com/chatvault/server-go/internal/jobs"
	"github.com/chatvault/server-go/internal/metrics"
	"github.com/chatvault/server-go/internal/middleware"
	"github.com/chatvault/server-go/internal/redis"
	"github.com/chatvault/server-go/internal/repository"
	"github.com/chatvault/server-go/internal/service"
	"github.com/chatvault/server-go/internal/sse"
	"github.com/chatvault/server-go/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Local development convenience; deployments set real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	metrics.Init()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	convRepo := repository.NewConversationRepository(db.DB)
	msgRepo := repository.NewMessageRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	cipher, err := util.NewCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid encryption key")
	}

	factory, err := newChatFactory(cfg.ChatDriver)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid chat driver")
	}
	log.Info().Str("driver", cfg.ChatDriver).Msg("chat driver selected")

	sessionService := service.NewSessionService(
		factory, sessionRepo, convRepo, msgRepo, broker, cipher,
		cfg.InitTimeout(), cfg.PersistTimeout(),
	)
	archiveService := service.NewArchiveService(
		sessionService, convRepo, msgRepo,
		cfg.ArchiveBatchSize, cfg.ArchivePauseEveryChats, cfg.ArchivePause(),
	)
	historyService := service.NewHistoryService(convRepo, msgRepo)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	sessionHandler := handler.NewSessionHandler(sessionService)
	archiveHandler := handler.NewArchiveHandler(archiveService)
	historyHandler := handler.NewHistoryHandler(historyService)
	eventsHandler := handler.NewEventsHandler(broker, sessionService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		// The event stream stays open indefinitely, so it sits outside
		// the request timeout groups.
		r.Get("/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Mount("/session", sessionHandler.Routes())
			r.Mount("/chats", historyHandler.Routes())
		})

		// Archive runs walk the whole account chat list.
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ArchiveRequestTimeout))
			r.Mount("/archive", archiveHandler.Routes())
		})
	})

	reconcileJob := jobs.NewReconcileJob(
		sessionRepo, sessionService,
		config.ReconcileJobInterval, config.ReconcileJobConcurrency,
	)
	reconcileJob.Start()
	defer reconcileJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// SSE connections write for as long as the client stays.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newChatFactory(driver string) (chat.Factory, error) {
	switch driver {
	case "sim":
		return sim.NewFactory(), nil
	default:
		return nil, fmt.Errorf("unknown chat driver %q", driver)
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
