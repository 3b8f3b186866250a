package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	appapproval "github.com/millworks/backoffice/internal/application/approval"
	"github.com/millworks/backoffice/internal/application/service"
	"github.com/millworks/backoffice/internal/config"
	"github.com/millworks/backoffice/internal/infrastructure/persistence/repository"
	httpserver "github.com/millworks/backoffice/internal/interfaces/http"
	"github.com/millworks/backoffice/pkg/database"
	"github.com/millworks/backoffice/pkg/utils"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting back-office approval service",
		zap.Int("port", cfg.Server.Port))

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	policyRepo := repository.NewPolicyRepository(db.DB, logger)
	workflowRepo := repository.NewWorkflowRepository(db.DB, logger)
	overtimeRepo := repository.NewOvertimeRepository(db.DB, logger)
	purchaseRepo := repository.NewPurchaseRepository(db.DB, logger)
	directory := repository.NewUserDirectory(db.DB, logger)

	// Approval engine and subject services. Service constructors register
	// their approval-event handlers with the engine.
	engine := appapproval.NewEngine(db, policyRepo, workflowRepo, directory, logger)
	overtimeService := service.NewOvertimeService(overtimeRepo, engine, db, logger)
	purchaseService := service.NewPurchaseService(purchaseRepo, engine, db, logger)
	policyService := service.NewPolicyService(policyRepo, db, logger)
	registryService := service.NewRegistryService(overtimeRepo, purchaseRepo, logger)

	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		overtimeService,
		purchaseService,
		policyService,
		registryService,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
