package infra

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTimeout = 30 * time.Second

// MigrationReport lists the versions applied by one run and the schema
// version the database ended at.
type MigrationReport struct {
	Applied []int64
	Version int64
}

// OpenSQL opens a database/sql handle through lib/pq for goose.
func OpenSQL(dsn string) (*sql.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database url is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Migrations returns the embedded goose migration files.
func Migrations() (fs.FS, error) {
	return fs.Sub(migrationFS, "migrations")
}

// NewMigrator builds a goose provider over the given migration files.
func NewMigrator(db *sql.DB, migrations fs.FS) (*goose.Provider, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return provider, nil
}

// Migrate applies every pending migration and reports what changed.
func Migrate(ctx context.Context, db *sql.DB, migrations fs.FS, logger Logger) (MigrationReport, error) {
	ctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	provider, err := NewMigrator(db, migrations)
	if err != nil {
		return MigrationReport{}, err
	}
	results, err := provider.Up(ctx)
	var report MigrationReport
	for _, r := range results {
		if r.Error != nil {
			continue
		}
		logger.Info().
			Int64("version", r.Source.Version).
			Str("file", path.Base(r.Source.Path)).
			Dur("duration", r.Duration).
			Msg("migration applied")
		report.Applied = append(report.Applied, r.Source.Version)
	}
	if err != nil {
		return report, fmt.Errorf("apply migrations: %w", err)
	}
	if report.Version, err = provider.GetDBVersion(ctx); err != nil {
		return report, fmt.Errorf("read schema version: %w", err)
	}
	return report, nil
}
