package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/mcoot/paddleduel/internal/api"
	"github.com/mcoot/paddleduel/internal/config"
	"github.com/mcoot/paddleduel/internal/factory"
	"github.com/mcoot/paddleduel/internal/gateway"
	"github.com/mcoot/paddleduel/internal/services/registry"
	pgstorage "github.com/mcoot/paddleduel/internal/storage/postgres"
	redisstorage "github.com/mcoot/paddleduel/internal/storage/redis"
)

func main() {
	configPath := flag.String("config", os.Getenv("PADDLE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := factory.New(ctx, factoryConfig(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	server := api.NewServer(app.Router(), api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     api.DefaultServerConfig().IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger, app.Hub.Close)

	logger.Info("server starting", slog.String("storage", cfg.Storage.Type))

	exitCode := 0
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		exitCode = 1
	}

	if err := app.Close(); err != nil {
		logger.Error("failed to release resources", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("server stopped")
	os.Exit(exitCode)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func factoryConfig(cfg config.Config, logger *slog.Logger) factory.Config {
	fc := factory.Config{
		Logger:      logger,
		StorageType: cfg.Storage.Type,
		Registration: registry.Config{
			MaxAttempts: cfg.Session.RegistrationAttempts,
			Window:      cfg.Session.RegistrationWindow,
		},
		GracePeriod: cfg.Session.GracePeriod,
		Gateway: gateway.Config{
			WriteWait:      cfg.Gateway.WriteWait,
			PongWait:       cfg.Gateway.PongWait,
			PingPeriod:     cfg.Gateway.PingPeriod,
			MaxMessageSize: cfg.Gateway.MaxMessageSize,
			SendBuffer:     cfg.Gateway.SendBuffer,
			AllowedOrigins: cfg.Gateway.AllowedOrigins,
		},
	}

	switch cfg.Storage.Type {
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		fc.RedisConfig = &redisCfg
	case config.StoragePostgres:
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = cfg.Storage.DatabaseURL
		pgCfg.AutoMigrate = cfg.Storage.AutoMigrate
		fc.PostgresConfig = &pgCfg
	}
	return fc
}
