package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/envutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type Config struct {
	Driver string // "postgres" or "sqlite"

	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	SQLitePath string
}

// ConfigFromEnv reads DB_DRIVER and the POSTGRES_* / SQLITE_PATH variables.
func ConfigFromEnv() Config {
	return Config{
		Driver:     strings.ToLower(envutil.String("DB_DRIVER", "postgres")),
		Host:       envutil.String("POSTGRES_HOST", "localhost"),
		Port:       envutil.String("POSTGRES_PORT", "5432"),
		User:       envutil.String("POSTGRES_USER", "postgres"),
		Password:   envutil.String("POSTGRES_PASSWORD", ""),
		Name:       envutil.String("POSTGRES_NAME", "weebform"),
		SSLMode:    envutil.String("POSTGRES_SSLMODE", "disable"),
		SQLitePath: envutil.String("SQLITE_PATH", "weebform.db"),
	}
}

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

func NewService(logg *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := logg.With("service", "DBService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gcfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %q: %w", cfg.SQLitePath, err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY under the gateway's concurrent writes.
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	case "", "postgres":
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
			cfg.SSLMode,
		)
		db, err = gorm.Open(postgres.Open(dsn), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.SetMaxOpenConns(envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20))
			sqlDB.SetMaxIdleConns(envutil.Int("POSTGRES_MAX_IDLE_CONNS", 5))
			sqlDB.SetConnMaxLifetime(30 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	serviceLog.Info("database connected", "driver", cfg.Driver)
	return &Service{db: db, driver: cfg.Driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
