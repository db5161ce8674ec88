// Package repomanager opens the credential repository selected by the
// server configuration and owns the resources behind it.
package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/migrations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/credentials"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// seams for tests
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	newObjectAPI = func(ctx context.Context, c *config.Config) (credentials.ObjectAPI, error) {
		return credentials.NewS3Client(ctx, c.S3Region, c.S3RootUser, c.S3RootPassword, c.S3BaseEndpoint)
	}
)

// Manager holds the active credential repository.
type Manager struct {
	backend string
	repo    credentials.Repository
	closers []func() error
}

// Open builds the repository for cfg.StorageBackend. For postgres it
// connects, pings and applies the embedded migrations before returning.
func Open(ctx context.Context, cfg *config.Config, log logging.Logger) (*Manager, error) {
	m := &Manager{backend: cfg.StorageBackend}

	switch cfg.StorageBackend {
	case config.StorageFile:
		m.repo = credentials.NewFileRepository(cfg.StoreFile)

	case config.StoragePostgres:
		db, err := openDB(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		m.repo = credentials.NewPostgresRepository(db)
		m.closers = append(m.closers, db.Close)

	case config.StorageS3:
		client, err := newObjectAPI(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		m.repo = credentials.NewS3Repository(client, cfg.S3Bucket, cfg.S3ObjectKey)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	log.Info(ctx, "credential repository ready", "backend", m.backend)
	return m, nil
}

// Credentials returns the opened repository.
func (m *Manager) Credentials() credentials.Repository {
	return m.repo
}

// Backend reports which storage backend is in use.
func (m *Manager) Backend() string {
	return m.backend
}

// Close releases connections held by the repository.
func (m *Manager) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c())
	}
	m.closers = nil
	return errors.Join(errs...)
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
