package pg

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	User     string `env:"USER"`
	Host     string `env:"HOST"`
	Port     string `env:"PORT"`
	Password string `env:"PASSWORD"`
	Database string `env:"DBNAME"`
	SSLMode  string `env:"SSLMODE"`

	// LockTimeout bounds how long a statement waits on a row lock. Workflows
	// that hit it fail with a storage error and can be retried by the caller.
	LockTimeout time.Duration

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts := []string{
		"host=" + c.Host,
		"user=" + c.User,
		"password=" + c.Password,
		"dbname=" + c.Database,
		"port=" + c.Port,
		"sslmode=" + sslMode,
	}
	if c.LockTimeout > 0 {
		// pgx forwards unknown keys as runtime parameters.
		parts = append(parts, fmt.Sprintf("lock_timeout=%d", c.LockTimeout.Milliseconds()))
	}
	return strings.Join(parts, " ")
}

func (c Config) applyPool(db *sql.DB) {
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
}

func newSqlConnection(config Config) (*sql.DB, error) {
	// lib/pq rejects unknown keys, so lock_timeout is left to the gorm pool.
	config.LockTimeout = 0
	return sql.Open("postgres", config.DSN())
}
