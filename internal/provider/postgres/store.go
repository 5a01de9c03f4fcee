package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swap357/cirunner/internal/provider"
)

// Compile-time interface satisfaction check.
var _ provider.Provider = (*Store)(nil)

const defaultNamespace = "default"

// Config holds Postgres connection settings.
type Config struct {
	DSN       string `yaml:"dsn" json:"dsn"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// Store keeps one row per stage key. Save replaces a namespace's rows inside
// one transaction, so concurrent readers see either the old or new document.
type Store struct {
	dsn       string
	namespace string
	pool      *pgxpool.Pool
}

// New creates a Store. The connection is opened by Start.
func New(cfg *Config) *Store {
	ns := cfg.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	return &Store{dsn: cfg.DSN, namespace: ns}
}

// Start connects, verifies the connection and applies the schema.
func (s *Store) Start(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres ping: %w", err)
	}
	s.pool = pool
	return s.Migrate(ctx)
}

// Migrate runs the schema DDL.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	if err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Stop closes the connection pool.
func (s *Store) Stop(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
