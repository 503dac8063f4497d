package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/phturb/campaign-codex-backend-go/model"
	"github.com/robfig/cron/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type dependencies struct {
	db *gorm.DB
	c  *cron.Cron
}

type Dependencies interface {
	Database(ctx context.Context) *gorm.DB
	Cron() *cron.Cron
}

var _ Dependencies = (*dependencies)(nil)

func NewDependencies(ctx context.Context) (Dependencies, error) {
	slog.Info("creating dependencies")
	cfg := Config()
	slog.Info(fmt.Sprintf("initializing %s database connection", cfg.Database.Driver))
	db, err := OpenDatabase(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	slog.Info("executing database auto migration")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	c := cron.New()

	return &dependencies{
		db: db,
		c:  c,
	}, nil
}

// OpenDatabase opens a gorm connection for the named driver ("sqlite" or "postgres").
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return gorm.Open(dialector, &gorm.Config{
		// entity references are soft, edges never carry real foreign keys
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger: logger.New(log.New(os.Stderr, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (d *dependencies) Database(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

func (d *dependencies) Cron() *cron.Cron {
	return d.c
}
