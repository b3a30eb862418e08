package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

// dbCommands run against a live database; create and validate only touch the directory.
var dbCommands = map[string]func(ctx context.Context, sqlDB *sql.DB, dir, target string) error{
	"up": func(ctx context.Context, sqlDB *sql.DB, dir, _ string) error {
		return migrate.Run(ctx, sqlDB, dir, "up")
	},
	"down": func(ctx context.Context, sqlDB *sql.DB, dir, _ string) error {
		return migrate.Run(ctx, sqlDB, dir, "down")
	},
	"status": func(ctx context.Context, sqlDB *sql.DB, dir, _ string) error {
		return migrate.Run(ctx, sqlDB, dir, "status")
	},
	"current": func(_ context.Context, sqlDB *sql.DB, _, _ string) error {
		version, err := migrate.CurrentVersion(sqlDB)
		if err != nil {
			return err
		}
		fmt.Println("current version:", version)
		return nil
	},
	"version": func(ctx context.Context, sqlDB *sql.DB, dir, target string) error {
		if target == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dir, target)
	},
}

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|current|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	switch *cmd {
	case "create":
		if *name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	run, ok := dbCommands[*cmd]
	if !ok {
		exitf("unknown -cmd value: %s", *cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "resource not working: config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "resource not working: database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "resource not working: sql database", err)
		os.Exit(1)
	}

	logg.Info(ctx, "migrate ready")
	if err := run(ctx, sqlDB, *dir, *target); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
