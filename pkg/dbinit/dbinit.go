// Package dbinit creates and migrates the optional PostgreSQL database that
// stores share codes and the transfer history.
package dbinit

import (
	"bufio"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/postgres" // PostgreSQL driver for dbmate
	_ "github.com/lib/pq"                                 // PostgreSQL driver
)

//go:embed migrations
var migrations embed.FS

// InitializeDatabase applies the embedded migrations, creating the database
// when needed, and returns an open connection.
func InitializeDatabase(ctx context.Context, databaseURL string, logger *slog.Logger) (*sql.DB, error) {
	parsedURL, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	logger.Info("Initializing database", slog.String("host", parsedURL.Host))
	if err := runMigrations(parsedURL, logger); err != nil {
		return nil, err
	}
	logger.Info("Database initialization completed successfully")

	return openAndTestConnection(ctx, databaseURL, logger)
}

// Migrations returns the names of the embedded migration files in order.
func Migrations() ([]string, error) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func runMigrations(parsedURL *url.URL, logger *slog.Logger) error {
	db := dbmate.New(parsedURL)
	db.AutoDumpSchema = false
	db.MigrationsDir = []string{"."}

	migrationFS, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration filesystem: %w", err)
	}
	db.FS = migrationFS

	out := logWriter(logger)
	defer out.Close() //nolint:errcheck
	db.Log = out

	names, err := Migrations()
	if err != nil {
		return err
	}
	logger.Info("Found migrations", slog.Int("count", len(names)))
	for _, name := range names {
		logger.Debug("Migration file", slog.String("name", name))
	}

	if err := db.CreateAndMigrate(); err != nil {
		return fmt.Errorf("failed to create and migrate database: %w", err)
	}
	return nil
}

// logWriter forwards the line oriented output of dbmate to logger.
func logWriter(logger *slog.Logger) io.WriteCloser {
	r, w := io.Pipe()
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if line := sc.Text(); line != "" {
				logger.Debug("dbmate", slog.String("output", line))
			}
		}
		_ = r.Close()
	}()
	return w
}

// openAndTestConnection opens a database connection and tests it.
func openAndTestConnection(ctx context.Context, databaseURL string, logger *slog.Logger) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			logger.Error("Failed to close database connection", slog.String("error", closeErr.Error()))
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established successfully")
	return sqlDB, nil
}
