package pg

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending goose migration found in dir.
func Migrate(cfg Config, dir string) error {
	return runGoose(cfg, dir, goose.Up)
}

// Rollback reverts the latest applied migration.
func Rollback(cfg Config, dir string) error {
	return runGoose(cfg, dir, goose.Down)
}

// MigrationStatus prints applied and pending migrations through goose's logger.
func MigrationStatus(cfg Config, dir string) error {
	return runGoose(cfg, dir, goose.Status)
}

func runGoose(cfg Config, dir string, op func(db *sql.DB, dir string, opts ...goose.OptionsFunc) error) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = op(db, dir); err != nil {
		return fmt.Errorf("goose: %w", err)
	}
	return nil
}
