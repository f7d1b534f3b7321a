package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/CodeXGautam/mail-tracker/internal/api"
	"github.com/CodeXGautam/mail-tracker/internal/cli"
	"github.com/CodeXGautam/mail-tracker/internal/config"
	"github.com/CodeXGautam/mail-tracker/internal/database"
	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	// The access log is the degraded-mode spine, so it comes up first
	logs := logstore.New(cfg.DataDir, logger)

	// A missing or unreachable database must not prevent startup: the
	// server runs in log-fallback mode instead
	db := initDatabase(cfg, logger)

	// Check if running CLI command
	if len(os.Args) > 1 {
		cli.Execute(db, cfg, logs)
		return
	}

	// Start API server
	router := api.SetupRouter(db, cfg, logs, logger)

	logger.Info("starting mail-tracker server",
		"port", cfg.APIPort,
		"dataDir", cfg.DataDir,
		"logFile", logs.Path(),
		"database", databaseState(db != nil))
	if err := router.Run(":" + cfg.APIPort); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}

func initDatabase(cfg *config.Config, logger *slog.Logger) *gorm.DB {
	if cfg.DatabasePath == "" {
		logger.Warn("no database path configured, starting in log-fallback mode")
		return nil
	}
	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		logger.Warn("database unavailable, starting in log-fallback mode",
			"path", cfg.DatabasePath, "error", err)
		return nil
	}
	return db
}

func databaseState(connected bool) string {
	if connected {
		return "Connected"
	}
	return "Disconnected"
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: parseLevel(level)})
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
