package database

import (
	"embed"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSpace(format), v...)
}

func MigrateDB(db *gorm.DB, lg *zap.SugaredLogger) error {
	sqlDb, err := db.DB()
	if err != nil {
		return err
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{lg.Named("migrate")})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(sqlDb, "migrations")
}

// NewTestDatabase returns a migrated database living in a test temp dir.
func NewTestDatabase(tb testing.TB) *gorm.DB {
	source := filepath.Join(tb.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn(source, 5*time.Second)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to init db %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to init db %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { sqlDB.Close() })

	if err := MigrateDB(db, zap.NewNop().Sugar()); err != nil {
		tb.Fatalf("failed to migrate db %v", err)
	}
	return db
}
