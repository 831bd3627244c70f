package main

import (
	"database/sql"
	"log/slog"
	"os"

	"github.com/ymorita/priceradar/configs"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pressly/goose/v3"
)

func main() {
	cfg := configs.AppLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		os.Exit(1)
	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		logger.Error("Goose: failed to set dialect", "error", err)
		os.Exit(1)
	}

	logger.Info("Running database migrations...")
	if err := goose.Up(db, "internal/migrations"); err != nil {
		logger.Error("Goose migration failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Migrations completed successfully")
}
