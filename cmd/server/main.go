package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KOSOTSU-dev/tel-plus/internal/config"
	"github.com/KOSOTSU-dev/tel-plus/internal/database"
	"github.com/KOSOTSU-dev/tel-plus/internal/gateway"
	"github.com/KOSOTSU-dev/tel-plus/internal/guest"
	"github.com/KOSOTSU-dev/tel-plus/internal/handlers"
	"github.com/KOSOTSU-dev/tel-plus/internal/logging"
	"github.com/KOSOTSU-dev/tel-plus/internal/middleware"
	"github.com/KOSOTSU-dev/tel-plus/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
	}

	logger.Info("Starting tel-plus server...")

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	// Open the embedded guest store
	logger.Info("Opening guest store", map[string]interface{}{
		"dir": cfg.Guest.Dir,
	})
	guestStore, err := guest.Open(cfg.Guest.Dir, cfg.Guest.InMemory)
	if err != nil {
		return fmt.Errorf("opening guest store: %w", err)
	}
	defer func() { _ = guestStore.Close() }()

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)
	notifier := services.NewRedisNotifier(redisAdapter)

	userService := services.NewUserService(dbAdapter)
	emailService := services.NewEmailService(&cfg.Email)
	authService := services.NewAuthService(userService, redisAdapter, emailService)
	profileService := services.NewProfileService(dbAdapter)
	friendService := services.NewFriendService(dbAdapter, notifier)
	requestService := services.NewFriendRequestService(dbAdapter, notifier)

	gw := gateway.New(profileService, friendService, requestService, guestStore)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(authService, gw, cfg.Server.Secure)
	profileHandler := handlers.NewProfileHandler(gw)
	friendHandler := handlers.NewFriendHandler(gw)
	eventsHandler := handlers.NewEventsHandler(redisDB.Client, cfg.Server.AllowedOrigins)

	// Initialize middleware
	authMiddleware := middleware.NewAuth(authService)
	requestLogger := middleware.NewRequestLogger(logger)

	loginRateLimiter := middleware.NewRateLimiter(redisDB.Client, 10, time.Minute, "ratelimit:login:", func(r *http.Request) string {
		return middleware.GetClientIP(r)
	}, true)
	requestRateLimiter := middleware.NewRateLimiter(redisDB.Client, 30, time.Hour, "ratelimit:friendreq:", func(r *http.Request) string {
		if user := handlers.GetUserFromContext(r.Context()); user != nil {
			return user.ID.String()
		}
		return ""
	}, true)

	requireSession := middleware.RequireSession
	requireUser := middleware.RequireUser

	// Set up router
	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	// Auth endpoints
	mux.Handle("POST /api/auth/register", http.HandlerFunc(authHandler.Register))
	mux.Handle("POST /api/auth/login", loginRateLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/logout", http.HandlerFunc(authHandler.Logout))
	mux.Handle("GET /api/auth/me", http.HandlerFunc(authHandler.Me))
	mux.Handle("POST /api/auth/guest", http.HandlerFunc(authHandler.GuestLogin))
	mux.Handle("POST /api/auth/password", requireUser(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/email", requireUser(http.HandlerFunc(authHandler.ChangeEmail)))
	mux.Handle("POST /api/auth/verify-email", http.HandlerFunc(authHandler.VerifyEmail))
	mux.Handle("POST /api/auth/resend-verification", requireUser(http.HandlerFunc(authHandler.ResendVerification)))

	// Profile endpoints
	mux.Handle("GET /api/profile", requireSession(http.HandlerFunc(profileHandler.Get)))
	mux.Handle("PUT /api/profile", requireSession(http.HandlerFunc(profileHandler.Update)))
	mux.Handle("GET /api/profile/lookup", requireSession(http.HandlerFunc(profileHandler.Lookup)))
	mux.Handle("GET /api/preferences/contact-fields", requireSession(http.HandlerFunc(profileHandler.GetContactFieldsPref)))
	mux.Handle("PUT /api/preferences/contact-fields", requireSession(http.HandlerFunc(profileHandler.SetContactFieldsPref)))

	// Friend endpoints
	mux.Handle("GET /api/friends", requireSession(http.HandlerFunc(friendHandler.List)))
	mux.Handle("POST /api/friends/requests", requireUser(requestRateLimiter.Middleware(http.HandlerFunc(friendHandler.SendRequest))))
	mux.Handle("GET /api/friends/requests", requireUser(http.HandlerFunc(friendHandler.ListRequests)))
	mux.Handle("PUT /api/friends/requests/{id}/accept", requireUser(http.HandlerFunc(friendHandler.AcceptRequest)))
	mux.Handle("PUT /api/friends/requests/{id}/reject", requireUser(http.HandlerFunc(friendHandler.RejectRequest)))
	mux.Handle("DELETE /api/friends/{id}", requireSession(http.HandlerFunc(friendHandler.Remove)))
	mux.Handle("PUT /api/friends/{id}/pin", requireSession(http.HandlerFunc(friendHandler.SetPin)))
	mux.Handle("PUT /api/friends/{id}/memo", requireSession(http.HandlerFunc(friendHandler.UpdateMemo)))
	mux.Handle("PUT /api/friends/reorder", requireSession(http.HandlerFunc(friendHandler.Reorder)))
	mux.Handle("POST /api/friends/guest", requireSession(http.HandlerFunc(friendHandler.AddGuestFriend)))

	// Change-event stream
	mux.Handle("GET /api/events", requireUser(http.HandlerFunc(eventsHandler.Subscribe)))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.Apply(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = requestLogger.Apply(handler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
