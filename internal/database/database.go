package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-faster/errors"
	"github.com/tgdrive/filestore/internal/config"
	"github.com/tgdrive/filestore/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewDatabase opens the SQLite file named by cfg.DataSource, creating its
// parent directory if needed.
func NewDatabase(cfg *config.DBConfig, lg *zap.SugaredLogger) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.DataSource); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "create database dir")
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg.DataSource, cfg.BusyTimeout)), &gorm.Config{
		Logger: NewLogger(time.Second, true, logging.ParseLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	rawDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	rawDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	rawDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	rawDB.SetConnMaxLifetime(cfg.MaxLifetime)

	lg.Debugw("database opened", "source", cfg.DataSource)
	return db, nil
}

func dsn(source string, busyTimeout time.Duration) string {
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		source, sep, busyTimeout.Milliseconds())
}
