package database

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pengaduan/pengaduan-backend/internal/config"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

var DB *gorm.DB

// Connect opens the Postgres pool used by the server and the CLI.
func Connect(cfg *config.Config) error {
	db, err := Open(postgres.Open(cfg.DSN()))
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	DB = db
	slog.Info("database connected")
	return nil
}

// Open wraps gorm.Open with the shared settings. Tests pass a sqlite dialector.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return open(dialector, os.Stdout)
}

// newLogger reports slow queries and real errors. Lookups that find nothing are
// an expected outcome for existence checks and stay quiet.
func newLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func open(dialector gorm.Dialector, w io.Writer) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger(w),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the engine owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Report{},
		&models.StatusChange{},
		&models.Evidence{},
		&models.EvidenceTombstone{},
		&models.ThreadEntry{},
		&models.ReportEvent{},
		&models.SystemLog{},
	)
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
