package database

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/crumb/internal/models"
)

const sqlitePrefix = "sqlite://"

// Connect opens the database named by dsn and runs migrations. DSNs starting
// with sqlite:// open a local SQLite file; everything else is treated as postgres.
func Connect(dsn, logLevel string) *gorm.DB {
	var (
		conn *gorm.DB
		err  error
	)

	if strings.HasPrefix(dsn, sqlitePrefix) {
		conn, err = OpenSQLite(strings.TrimPrefix(dsn, sqlitePrefix), logLevel)
	} else {
		if err := ensureDatabase(dsn); err != nil {
			log.Fatalf("failed to ensure database: %v", err)
		}
		conn, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(parseLogLevel(logLevel)),
		})
	}
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := Migrate(conn); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	return conn
}

// OpenSQLite opens a SQLite database without migrating it. The pool is pinned
// to one connection so ":memory:" databases survive between calls and writers
// never contend for the file lock.
func OpenSQLite(path, logLevel string) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(parseLogLevel(logLevel)),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return conn, nil
}

// Migrate creates or updates all tables.
func Migrate(conn *gorm.DB) error {
	for _, model := range models.All() {
		if err := conn.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return nil
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	masterDSN := parsed.String()

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	log.Printf("[Database] creating database %s", dbName)
	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
