package database

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

var (
	errUnsupportedDriver = fmt.Errorf("unsupported database driver")
	errNotConnected      = fmt.Errorf("database not connected")
)

func Connect(cfg *config.Config) error {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return err
	}

	DB, err = Open(dialector)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if strings.EqualFold(cfg.DBDriver, "sqlite") {
		// sqlite serializes writers; a single connection keeps row-lock sections ordered.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	slog.Info("database connected", "driver", cfg.DBDriver)
	return nil
}

// Open opens a gorm handle with driver errors translated to gorm sentinels
// (gorm.ErrDuplicatedKey in particular).
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.DBDriver) {
	case "postgres", "postgresql":
		return postgres.New(postgres.Config{DSN: cfg.DSN()}), nil
	case "sqlite", "sqlite3":
		if cfg.SQLitePath == ":memory:" {
			return sqlite.Open("file::memory:?cache=shared"), nil
		}
		return sqlite.Open(cfg.SQLitePath), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedDriver, cfg.DBDriver)
	}
}

// Migrate runs AutoMigrate for every model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

func Ping() error {
	if DB == nil {
		return errNotConnected
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
