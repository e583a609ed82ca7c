package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/internal/pkg/config"
	"github.com/ManuelReschke/Payline/internal/pkg/env"
	"github.com/ManuelReschke/Payline/internal/pkg/logger"
)

const sourceURL = "file://migrations"

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("connecting to database",
		zap.String("user", cfg.Database.User),
		zap.String("host", cfg.Database.Host),
		zap.String("port", cfg.Database.Port),
		zap.String("name", cfg.Database.Name),
	)

	m, err := migrate.New(sourceURL, cfg.Database.MigrateURL())
	if err != nil {
		lg.Fatal("failed to initialise migrations", zap.Error(err))
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			lg.Warn("failed to close migration resources", zap.NamedError("source", sourceErr), zap.NamedError("database", dbErr))
		}
	}()

	switch command {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			lg.Info("no change: database is up to date")
		case err != nil:
			lg.Fatal("failed to apply migrations", zap.Error(err))
		default:
			lg.Info("migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			lg.Fatal("failed to roll back last migration", zap.Error(err))
		}
		lg.Info("rolled back last migration")

	case "goto":
		if len(os.Args) < 3 {
			lg.Fatal("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			lg.Fatal("invalid version number", zap.String("version", os.Args[2]), zap.Error(err))
		}
		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			lg.Info("no change: database already at version", zap.Uint64("version", version))
		case err != nil:
			lg.Fatal("failed to migrate", zap.Uint64("version", version), zap.Error(err))
		default:
			lg.Info("migrated", zap.Uint64("version", version))
		}

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			lg.Info("no migrations applied yet")
		case err != nil:
			lg.Fatal("failed to read migration version", zap.Error(err))
		default:
			lg.Info("current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run ./cmd/migrate [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
}
