package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prudhvinik1/reallink/internal/config"
	"github.com/prudhvinik1/reallink/internal/database"
	"github.com/prudhvinik1/reallink/internal/discovery"
	"github.com/prudhvinik1/reallink/internal/handlers"
	"github.com/prudhvinik1/reallink/internal/logger"
	"github.com/prudhvinik1/reallink/internal/metrics"
	"github.com/prudhvinik1/reallink/internal/presence"
	"github.com/prudhvinik1/reallink/internal/realtime"
	"github.com/prudhvinik1/reallink/internal/repositories"
	"github.com/prudhvinik1/reallink/internal/services"
	"github.com/prudhvinik1/reallink/internal/session"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Build(cfg.Logger)
	defer log.Sync()

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to create postgres pool", zap.Error(err))
	}
	defer postgresPool.Close()

	if err := database.Migrate(ctx, postgresPool); err != nil {
		log.Fatal("failed to apply schema", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to create redis client", zap.Error(err))
	}
	defer redisClient.Close()

	hub := realtime.NewHub(redisClient, log)
	m := metrics.New(prometheus.DefaultRegisterer)

	// Repositories
	profileRepo := repositories.NewPostgresProfileRepository(postgresPool, hub, log)
	connectionRepo := repositories.NewPostgresConnectionRepository(postgresPool, hub, log)
	notificationRepo := repositories.NewPostgresNotificationRepository(postgresPool, hub, log)
	messageRepo := repositories.NewPostgresMessageRepository(postgresPool, hub, log)
	postRepo := repositories.NewPostgresPostRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient, log)
	presenceRepo := repositories.NewRedisPresenceRepository(redisClient)

	// Services
	presenceService := services.NewPresenceService(profileRepo, presenceRepo, log)

	discoveryCfg := discovery.DefaultConfig()
	discoveryCfg.RefreshInterval = cfg.DiscoveryRefreshInterval
	discoveryCfg.NearbyWindow = cfg.NearbyWindow
	discoveryCfg.UnconnectedWindow = cfg.UnconnectedWindow

	sessions := session.NewManager(session.Config{
		Presence: presence.Config{
			PresenceInterval: cfg.PresenceInterval,
			ScanInterval:     cfg.DeviceScanInterval,
		},
		Discovery: discoveryCfg,
	}, session.Deps{
		Profiles:    profileRepo,
		Connections: connectionRepo,
		Presence:    presenceService,
		Changes:     hub,
		Metrics:     m,
		Log:         log,
	})

	authService := services.NewAuthService(profileRepo, sessionRepo, sessions, cfg.JWTSecret, cfg.JWTExpiry, log)
	linkService := services.NewLinkService(profileRepo, connectionRepo, log)
	notificationService := services.NewNotificationService(notificationRepo, connectionRepo, log)
	messageService := services.NewMessageService(messageRepo)
	monetizationService := services.NewMonetizationService(profileRepo, connectionRepo, postRepo, log)

	// Initialize HTTP Server
	router := handlers.NewRouter(handlers.RouterDeps{
		Auth:          authService,
		AuthHandler:   handlers.NewAuthHandler(authService, log),
		Session:       handlers.NewSessionHandler(sessions, log),
		Presence:      handlers.NewPresenceHandler(presenceService, log),
		Social:        handlers.NewSocialHandler(linkService, notificationService, messageService, monetizationService, log),
		ScanLimiter:   handlers.NewUserLimiter(cfg.ScanRateLimit, cfg.ScanRateBurst),
		MetricsSource: prometheus.DefaultGatherer,
		Log:           log,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
		// Every live session is written offline before the stores close.
		if err := sessions.Shutdown(ctx); err != nil {
			log.Error("failed to end sessions", zap.Error(err))
		}
	}()

	log.Info("starting server", zap.String("port", cfg.ServerPort))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
	<-done

	log.Info("server stopped gracefully")
}
