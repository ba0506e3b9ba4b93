// Package database owns the optional session ledger: a GORM-backed
// mirror of session lifecycle transitions used only for the /stats
// admin surface. The Session Store (internal/session) remains the
// sole source of truth for live state; this package never gates a
// request on its own success.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var db *gorm.DB

// Connect opens the ledger database according to config.Get().Database
// and migrates the ledger schema. Failure here is non-fatal to the
// caller by design — callers should log and continue without a ledger
// rather than refuse to serve traffic.
func Connect(logger hclog.Logger) (*gorm.DB, error) {
	cfg := config.Get().Database

	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var conn *gorm.DB
	var err error
	switch cfg.Type {
	case "postgres":
		conn, err = gorm.Open(postgres.Open(config.DatabaseURL()), gormConfig)
	case "sqlite":
		if mkErr := os.MkdirAll(filepath.Dir(config.DatabasePath()), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create database directory: %w", mkErr)
		}
		conn, err = gorm.Open(sqlite.Open(sqliteDSN()), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported ledger database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}

	if err := configurePool(conn, cfg.Type); err != nil {
		logger.Warn("failed to configure ledger connection pool", "error", err)
	}

	if err := conn.AutoMigrate(&SessionLedgerEntry{}); err != nil {
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}

	db = conn
	return conn, nil
}

func sqliteDSN() string {
	return config.DatabasePath() + "?" +
		"cache=shared&" +
		"mode=rwc&" +
		"_journal_mode=WAL&" +
		"_synchronous=NORMAL&" +
		"_busy_timeout=5000"
}

func configurePool(conn *gorm.DB, dbType string) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if dbType == "postgres" {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		sqlDB.SetMaxOpenConns(5)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return nil
}

// DB returns the connected ledger handle, or nil if Connect has not
// succeeded (or was never called) — callers must treat a nil DB as
// "ledger disabled".
func DB() *gorm.DB {
	return db
}
