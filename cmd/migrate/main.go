package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"crashgame/internal/config"
	"crashgame/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	command := os.Args[1]
	migrationsPath := cfg.MigrationsPath

	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate create <migration_name>")
		}
		createMigration(migrationsPath, os.Args[2])
		return
	}

	db, err := database.OpenSQL(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := log.WithFields(log.Fields{
		"component": "migrate",
		"path":      migrationsPath,
		"database":  cfg.Database.Database,
	})

	switch command {
	case "up":
		logger.Info("running migrations")
		if err := database.RunMigrations(db, migrationsPath); err != nil {
			logger.Fatalf("migration failed: %v", err)
		}
		logger.Info("migrations completed")

	case "down":
		logger.Info("rolling back last migration")
		if err := database.RollbackMigration(db, migrationsPath); err != nil {
			logger.Fatalf("rollback failed: %v", err)
		}
		logger.Info("rollback completed")

	case "version":
		version, dirty, err := database.GetMigrationVersion(db, migrationsPath)
		if err != nil {
			logger.Fatalf("failed to get version: %v", err)
		}
		if dirty {
			logger.WithField("version", version).Warn("schema is dirty and needs manual intervention")
		} else {
			logger.WithField("version", version).Info("current version")
		}

	default:
		logger.Errorf("unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

// createMigration writes an empty up/down pair numbered after the highest
// existing version.
func createMigration(dir, name string) {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("failed to read migrations directory: %v", err)
	}

	nextVersion := 1
	for _, file := range files {
		prefix, _, ok := strings.Cut(file.Name(), "_")
		if !ok || file.IsDir() {
			continue
		}
		if v, err := strconv.Atoi(prefix); err == nil && v >= nextVersion {
			nextVersion = v + 1
		}
	}

	upFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.up.sql", nextVersion, name))
	downFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.down.sql", nextVersion, name))

	upContent := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", name, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(upFile, []byte(upContent), 0644); err != nil {
		log.Fatalf("failed to create up migration: %v", err)
	}
	downContent := fmt.Sprintf("-- Rollback: %s\n\n", name)
	if err := os.WriteFile(downFile, []byte(downContent), 0644); err != nil {
		log.Fatalf("failed to create down migration: %v", err)
	}

	log.WithFields(log.Fields{"up": upFile, "down": downFile}).Info("created migration files")
}

func printUsage() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate up              Run all pending migrations")
	fmt.Println("  migrate down            Rollback the last migration")
	fmt.Println("  migrate version         Show current migration version")
	fmt.Println("  migrate create <name>   Create a new migration file")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_HOST         Database host (default: localhost)")
	fmt.Println("  DB_PORT         Database port (default: 5432)")
	fmt.Println("  DB_DATABASE     Database name (default: crashdb)")
	fmt.Println("  DB_USERNAME     Database user (default: postgres)")
	fmt.Println("  DB_PASSWORD     Database password (default: postgres)")
	fmt.Println("  DB_SCHEMA       Database schema (default: public)")
	fmt.Println("  MIGRATIONS_PATH Path to migrations (default: migrations)")
}
