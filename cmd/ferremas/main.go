package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ferremas/internal/config"
	"ferremas/internal/http/handlers"
	applog "ferremas/internal/log"
	"ferremas/internal/repos"
)

func main() {
	cfg := config.Load()

	logger, err := applog.New(cfg.LogLevel, cfg.LogEncoding, cfg.LogFile)
	if err != nil {
		log.Fatalf("[log] could not open log file %s: %v", cfg.LogFile, err)
	}
	defer func() { _ = logger.Sync() }()
	applog.Set(logger)

	db, err := repos.OpenDBWithPool(cfg.DBDriver, cfg.DBDSN, cfg.DBMaxOpenConns)
	if err != nil {
		logger.Fatal("db.open", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer db.Close()

	deps := handlers.NewDeps(db, cfg, logger)
	if cfg.BootstrapAPIKey != "" {
		if err := deps.Auth.EnsureBootstrap(context.Background(), cfg.BootstrapAPIKey, "admin"); err != nil {
			logger.Fatal("auth.bootstrap", zap.Error(err))
		}
	} else if cfg.APIKeyAuth {
		logger.Warn("auth.bootstrap.missing", zap.String("hint", "set BOOTSTRAP_API_KEY=<id>.<secret> to create the first key"))
	}

	app := handlers.NewApp(deps, cfg)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("server.shutdown")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server.shutdown", zap.Error(err))
		}
	}()

	logger.Info("server.start", zap.String("port", cfg.Port), zap.String("driver", cfg.DBDriver))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("server.listen", zap.Error(err))
	}
}
