package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agentchat/config"
)

// Init opens the database connection described by the application config.
// Driver "sqlite" with DSN "memory" (or empty) gives a shared in-memory
// database; any other sqlite DSN is treated as a file path. Driver
// "postgres" builds a DSN from the host fields.
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		db, err := gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db, nil

	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "memory" || dsn == "" {
			dsn = "file::memory:?cache=shared"
		} else {
			// Make sure the directory for the database file exists.
			if dir := filepath.Dir(dsn); dir != "." && dir != "/" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
					}
				}
			}
		}
		db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database %q: %w", dsn, err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
