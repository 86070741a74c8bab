package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/balancepro/studio-server/internal/conference"
	"github.com/balancepro/studio-server/internal/config"
	"github.com/balancepro/studio-server/internal/database"
	"github.com/balancepro/studio-server/internal/handler"
	"github.com/balancepro/studio-server/internal/jobs"
	"github.com/balancepro/studio-server/internal/middleware"
	"github.com/balancepro/studio-server/internal/redis"
	"github.com/balancepro/studio-server/internal/repository"
	"github.com/balancepro/studio-server/internal/service"
	"github.com/balancepro/studio-server/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	location, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load studio time zone")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	cancel()
	log.Info().Msg("database connected")

	// Live class state and login throttling follow the store backend.
	var (
		liveStore    store.Store
		loginLimiter middleware.LoginLimiter
	)
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		redisStore := redis.NewStore(redisClient, cfg.StoreKeyPrefix)
		defer redisStore.Close()

		liveStore = redisStore
		loginLimiter = service.NewRateLimiter(redisClient.Client, cfg.StoreKeyPrefix)
	default:
		liveStore = store.NewMemory()
		loginLimiter = middleware.NewMemoryLoginLimiter()
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("live class store ready")

	memberRepo := repository.NewMemberRepository(db.DB)
	scheduleRepo := repository.NewScheduleRepository(db.DB)
	dietRepo := repository.NewDietRepository(db.DB)
	memberSessionRepo := repository.NewMemberSessionRepository(db.DB)

	liveService := service.NewLiveSessionService(liveStore, cfg.TrainerName)
	attendanceService := service.NewAttendanceService(
		liveService, conference.NewJitsi(cfg.ConferenceDomain, cfg.ConferenceRoomPrefix),
	)
	scheduleService := service.NewScheduleService(scheduleRepo, liveService, cfg.TrainerName, location)
	directoryService := service.NewDirectoryService(db, memberRepo, dietRepo, memberSessionRepo, cfg.TrainerPhone)
	dietService := service.NewDietService(dietRepo, memberRepo)
	authService := service.NewAuthService(memberRepo, memberSessionRepo, service.TrainerIdentity{
		Phone:      cfg.TrainerPhone,
		Name:       cfg.TrainerName,
		SecretHash: cfg.TrainerSecretHash,
	}, cfg.MemberSessionTTL())

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go attendanceService.Watch(watchCtx)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	loginRateLimitMiddleware := middleware.NewLoginRateLimitMiddleware(loginLimiter)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	authHandler := handler.NewAuthHandler(authService, loginRateLimitMiddleware.Handler, authMiddleware.Handler)
	liveHandler := handler.NewLiveHandler(liveService, attendanceService)
	eventsHandler := handler.NewEventsHandler(liveService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService)
	memberHandler := handler.NewMemberHandler(directoryService, dietService)

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
			"store":     cfg.StoreBackend,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)

		// The event stream outlives any request timeout.
		r.With(authMiddleware.Handler).Get("/live/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

			r.Mount("/auth", authHandler.Routes())

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Handler)
				r.Mount("/live", liveHandler.Routes())
				r.Mount("/schedules", scheduleHandler.Routes())
				r.Mount("/members", memberHandler.Routes())
				r.Get("/diet", memberHandler.OwnDiet)
			})
		})
	})

	if cfg.StaticDir != "" {
		r.Get("/*", handler.NewSPAHandler(cfg.StaticDir).ServeHTTP)
		log.Info().Str("dir", cfg.StaticDir).Msg("serving studio web client")
	}

	cleanupJob := jobs.NewCleanupJob(memberSessionRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("trainer", cfg.TrainerName).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	stopWatch()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
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
