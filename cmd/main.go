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

	"github.com/arenahub/esports-ops/config"
	"github.com/arenahub/esports-ops/db"
	"github.com/arenahub/esports-ops/handlers"
	"github.com/arenahub/esports-ops/live"
	"github.com/arenahub/esports-ops/repositories"
	api "github.com/arenahub/esports-ops/routes"
	"github.com/arenahub/esports-ops/services"
	"github.com/arenahub/esports-ops/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

const (
	reminderInterval = 1 * time.Minute // проверка открывшихся окон чек-ина
	cleanupInterval  = 1 * time.Hour   // удаление протухших приглашений
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация загрузчика файлов (Cloudflare R2)
	cloudflareUploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
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

	// Инициализация WebSocket Hub
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	txManager := repositories.NewSQLTxManager(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	gameRepo := repositories.NewPostgresGameRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	staffRepo := repositories.NewPostgresStaffRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	auditRepo := repositories.NewPostgresAuditRepository(dbConn)
	inviteRepo := repositories.NewPostgresInviteRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	permissionResolver := services.NewPermissionResolver(staffRepo)

	authService := services.NewAuthService(userRepo)
	emailService := services.NewEmailService(cfg)
	gameService := services.NewGameService(gameRepo, cloudflareUploader)
	teamService := services.NewTeamService(teamRepo, gameRepo, userRepo, cloudflareUploader)
	inviteService := services.NewInviteService(inviteRepo, teamRepo, cfg.Team)

	tournamentService := services.NewTournamentService(
		tournamentRepo,
		gameRepo,
		userRepo,
		staffRepo,
		permissionResolver,
		auditRepo,
		cloudflareUploader,
		logger,
	)
	registrationService := services.NewRegistrationService(
		registrationRepo,
		tournamentRepo,
		teamRepo,
		userRepo,
		permissionResolver,
	)
	checkinService := services.NewCheckinService(
		txManager,
		registrationRepo,
		tournamentRepo,
		userRepo,
		teamRepo,
		permissionResolver,
		auditRepo,
		wsHub,
		cfg.Checkin,
		logger,
	)
	matchService := services.NewMatchOpsService(
		txManager,
		matchRepo,
		tournamentRepo,
		userRepo,
		permissionResolver,
		auditRepo,
		wsHub,
		logger,
	)
	auditService := services.NewAuditService(
		auditRepo,
		tournamentRepo,
		userRepo,
		permissionResolver,
		cloudflareUploader,
	)
	dashboardService := services.NewDashboardService(
		userRepo,
		teamRepo,
		tournamentRepo,
		registrationRepo,
		matchRepo,
	)
	notificationService := services.NewNotificationService(
		tournamentRepo,
		registrationRepo,
		userRepo,
		teamRepo,
		emailService,
		cfg.Checkin,
		logger,
	)
	logger.Info("Services initialized")

	// Планировщик напоминаний о чек-ине
	go func() {
		ticker := time.NewTicker(reminderInterval)
		defer ticker.Stop()
		logger.Info("check-in reminder scheduler started", slog.Duration("interval", reminderInterval))

		for range ticker.C {
			notificationService.SendCheckinReminders(context.Background(), reminderInterval)
		}
	}()

	// Планировщик очистки протухших приглашений
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		logger.Info("invite cleanup scheduler started", slog.Duration("interval", cleanupInterval))

		for range ticker.C {
			removed, err := inviteService.CleanupExpired(context.Background())
			if err != nil {
				logger.Error("invite cleanup failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				logger.Info("expired invites removed", slog.Int64("count", removed))
			}
		}
	}()

	// Инициализация обработчиков HTTP
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	registrationHandler := handlers.NewRegistrationHandler(registrationService)
	checkinHandler := handlers.NewCheckinHandler(checkinService)
	matchHandler := handlers.NewMatchHandler(matchService)
	teamHandler := handlers.NewTeamHandler(teamService)
	inviteHandler := handlers.NewInviteHandler(inviteService)
	gameHandler := handlers.NewGameHandler(gameService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	auditHandler := handlers.NewAuditHandler(auditService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		authHandler,
		tournamentHandler,
		registrationHandler,
		checkinHandler,
		matchHandler,
		teamHandler,
		inviteHandler,
		gameHandler,
		dashboardHandler,
		auditHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
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

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
