// Package store implements the metastore-backed collaborators the control
// plane depends on: the Node Registry Gateway's backing table and the
// stream-manifest table used by the stats-aggregation helpers. The
// metastore itself is an out-of-scope external collaborator per the
// specification; these are the concrete adapters this repository ships so
// the rest of the control plane has something real to run against.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore wraps a pgx connection pool and owns schema bootstrap for
// every table the control plane reads and writes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cluster_nodes (
			domain     TEXT NOT NULL,
			role       TEXT NOT NULL,
			token      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (domain, role)
		)`,
		`CREATE INDEX IF NOT EXISTS cluster_nodes_role_idx ON cluster_nodes (role)`,
		`CREATE TABLE IF NOT EXISTS stream_manifests (
			id                        BIGSERIAL PRIMARY KEY,
			stream                    TEXT NOT NULL,
			time_lower_bound          TIMESTAMPTZ NOT NULL,
			format                    TEXT NOT NULL,
			events_ingested           BIGINT NOT NULL DEFAULT 0,
			events_ingested_lifetime  BIGINT NOT NULL DEFAULT 0,
			events_ingested_deleted   BIGINT NOT NULL DEFAULT 0,
			ingestion_size            BIGINT NOT NULL DEFAULT 0,
			ingestion_size_lifetime   BIGINT NOT NULL DEFAULT 0,
			ingestion_size_deleted    BIGINT NOT NULL DEFAULT 0,
			storage_size              BIGINT NOT NULL DEFAULT 0,
			storage_size_lifetime     BIGINT NOT NULL DEFAULT 0,
			storage_size_deleted      BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS stream_manifests_stream_idx ON stream_manifests (stream)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
