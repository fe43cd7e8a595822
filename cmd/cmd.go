package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farisgozi/attendify/internal/blob"
	"github.com/farisgozi/attendify/internal/config"
	"github.com/farisgozi/attendify/internal/handlers"
	"github.com/farisgozi/attendify/internal/media"
	"github.com/farisgozi/attendify/internal/middleware"
	"github.com/farisgozi/attendify/internal/queue"
	"github.com/farisgozi/attendify/internal/repository"
	"github.com/farisgozi/attendify/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Object storage
	store, err := blob.NewStore(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob store")
	}

	// Signed URL managers, one per bucket
	attendanceMedia := media.NewManager(store, cfg.Storage.AttendanceBucket,
		cfg.Media.SignedURLTTL(), cfg.Media.RefreshInterval())
	avatarMedia := media.NewManager(store, cfg.Storage.AvatarsBucket,
		cfg.Media.SignedURLTTL(), cfg.Media.RefreshInterval())

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	tokenRepo := repository.NewPushTokenRepository(db)

	// Delivery queue: Redis when configured, in-memory otherwise
	var q queue.Queue
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 1 * time.Second,
		})
		q = queue.NewRedisQueue(redisClient, cfg.Redis.QueueKey)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis delivery queue")
	} else {
		q = queue.NewInMemory(64)
	}

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	attendanceService := services.NewAttendanceService(attendanceRepo, store, cfg.Storage.AttendanceBucket)
	profileService := services.NewProfileService(profileRepo, store, cfg.Storage.AvatarsBucket)
	notificationService, err := services.NewNotificationService(tokenRepo, q, cfg.Push)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notification service")
	}
	hub := services.NewHub()

	// Notification delivery worker
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		if err := notificationService.RunWorker(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Error().Err(err).Msg("Notification worker stopped")
		}
	}()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, hub)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceService, attendanceMedia, hub)
	profileHandler := handlers.NewProfileHandler(profileService, avatarMedia)
	mediaHandler := handlers.NewMediaHandler(attendanceMedia, avatarMedia,
		cfg.Media.RetryMaxAttempts, cfg.Media.RetryBaseDelay())
	notificationHandler := handlers.NewNotificationHandler(notificationService, tokenRepo)
	wsHandler := handlers.NewWebSocketHandler(hub, userService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := http.StatusOK
		if err := db.Ping(req.Context()); err != nil {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
	})

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.SignUp)
		r.Post("/sessions", userHandler.SignIn)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/session", userHandler.GetSession)
			r.Delete("/session", userHandler.SignOut)
			r.Get("/attendance/today", attendanceHandler.Today)
			r.Post("/attendance/captures", attendanceHandler.SubmitCapture)
			r.Get("/attendance", attendanceHandler.History)
			r.Get("/profile", profileHandler.Get)
			r.Put("/profile", profileHandler.Update)
			r.Post("/profile/avatar", profileHandler.UploadAvatar)
			r.Get("/media/url", mediaHandler.ResolveURL)
			r.Get("/media/image", mediaHandler.FetchImage)
			r.Post("/push-tokens", notificationHandler.RegisterToken)
			r.Post("/notifications", notificationHandler.Send)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	stopWorker()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
