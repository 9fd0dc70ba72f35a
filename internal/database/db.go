package database

import (
	"database/sql"
	"embed"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps the Postgres pool plus the query helpers in store.go.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

func InitDB(dsn string, logger *zap.Logger) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		conn.Close()
		return nil, err
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("Postgres initialized, migrations applied")
	return &DB{DB: conn, logger: logger}, nil
}

func (db *DB) CloseDB() {
	if db != nil && db.DB != nil {
		db.DB.Close()
		db.logger.Info("DB closed")
	}
}
