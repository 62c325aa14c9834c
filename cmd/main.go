package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/blackbirdcodelabs/jnanagni-backend/config"
	"github.com/blackbirdcodelabs/jnanagni-backend/db"
	"github.com/blackbirdcodelabs/jnanagni-backend/handlers"
	"github.com/blackbirdcodelabs/jnanagni-backend/middleware"
	"github.com/blackbirdcodelabs/jnanagni-backend/repositories"
	api "github.com/blackbirdcodelabs/jnanagni-backend/routes"
	"github.com/blackbirdcodelabs/jnanagni-backend/services"
	"github.com/blackbirdcodelabs/jnanagni-backend/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage not configured; certificate file uploads disabled")
	}

	var notifier services.Notifier
	if cfg.SMTPConfigured() {
		notifier = services.NewEmailService(cfg)
		logger.Info("SMTP notifier initialized", slog.String("host", cfg.SMTPHost))
	} else {
		logger.Warn("SMTP not configured; notifications disabled")
	}

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	regRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	resultRepo := repositories.NewPostgresResultRepository(dbConn)
	attRepo := repositories.NewPostgresAttendanceRepository(dbConn)
	certRepo := repositories.NewPostgresCertificateRepository(dbConn)

	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(userRepo, notifier, logger)
	eventService := services.NewEventService(eventRepo)
	regService := services.NewRegistrationService(regRepo, eventRepo, userRepo, notifier, logger)
	certService := services.NewCertificateService(certRepo, uploader, logger)
	roundService := services.NewRoundService(eventRepo, resultRepo, regRepo, certService, logger)
	attService := services.NewAttendanceService(attRepo, regRepo, eventRepo, userRepo, resultRepo, certService, logger)
	logger.Info("services initialized")

	auth := middleware.NewAuthenticator(cfg.JWTSecretKey)
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		auth,
		handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		handlers.NewUserHandler(userService),
		handlers.NewEventHandler(eventService, roundService),
		handlers.NewRegistrationHandler(regService),
		handlers.NewResultHandler(roundService),
		handlers.NewAttendanceHandler(attService),
		handlers.NewCertificateHandler(certService),
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
