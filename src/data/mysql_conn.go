package data

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// GetDSN returns the persistence DSN configured via environment.
// DATABASE_URL wins over the legacy MYSQL_DSN.
func GetDSN() (string, error) {
	for _, key := range []string{"DATABASE_URL", "MYSQL_DSN"} {
		if dsn := strings.TrimSpace(os.Getenv(key)); dsn != "" {
			return dsn, nil
		}
	}
	return "", fmt.Errorf("DATABASE_URL is not set")
}

// Open opens a gorm DB with sane defaults. DSNs prefixed with "sqlite:" use
// the sqlite driver, everything else is treated as a MySQL DSN.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{SlowThreshold: time.Second, LogLevel: logger.Warn, IgnoreRecordNotFoundError: true, Colorful: false},
	)
	cfg := &gorm.Config{Logger: gormLogger}

	if strings.HasPrefix(dsn, sqlitePrefix) {
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, sqlitePrefix), "//")
		if path == "" {
			return nil, fmt.Errorf("data: empty sqlite path")
		}
		db, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("data: open sqlite: %w", err)
		}
		// sqlite allows a single writer; keep one connection so in-memory
		// databases are shared and writes never hit SQLITE_BUSY.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
		return db, nil
	}

	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}
	db, err := gorm.Open(mysql.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("data: open mysql: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}
