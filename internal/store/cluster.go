package store

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/clusterctl/internal/cluster"
)

// ClusterRegistryGateway implements cluster.RegistryGateway over the
// cluster_nodes table, adapted from the teacher's upsert/list/delete
// pattern for node records.
type ClusterRegistryGateway struct {
	store *PostgresStore
}

func NewClusterRegistryGateway(store *PostgresStore) *ClusterRegistryGateway {
	return &ClusterRegistryGateway{store: store}
}

// UpsertNode inserts or updates a node's metadata for its role.
func (g *ClusterRegistryGateway) UpsertNode(ctx context.Context, node cluster.NodeMetadata) error {
	query := `
		INSERT INTO cluster_nodes (domain, role, token, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (domain, role) DO UPDATE SET
			token      = EXCLUDED.token,
			updated_at = now()
	`
	_, err := g.store.pool.Exec(ctx, query, node.Domain, string(node.Role), node.Token)
	if err != nil {
		return fmt.Errorf("upsert cluster node: %w", err)
	}
	return nil
}

// NodesByRole returns every node registered under the given role.
func (g *ClusterRegistryGateway) NodesByRole(ctx context.Context, role cluster.NodeRole) ([]cluster.NodeMetadata, error) {
	query := `SELECT domain, role, token FROM cluster_nodes WHERE role = $1 ORDER BY domain`
	rows, err := g.store.pool.Query(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("list cluster nodes: %w", err)
	}
	defer rows.Close()

	var nodes []cluster.NodeMetadata
	for rows.Next() {
		var domain, roleStr, token string
		if err := rows.Scan(&domain, &roleStr, &token); err != nil {
			return nil, fmt.Errorf("scan cluster node: %w", err)
		}
		nodes = append(nodes, cluster.NodeMetadata{
			Domain: domain,
			Role:   cluster.NodeRole(roleStr),
			Token:  token,
		})
	}
	return nodes, rows.Err()
}

// RemoveNode deletes a node by domain across every role partition,
// reporting whether at least one partition actually had a matching row
// (spec §4.9's "succeeds if at least one deletion reported a removal").
func (g *ClusterRegistryGateway) RemoveNode(ctx context.Context, domain string) (bool, error) {
	query := `DELETE FROM cluster_nodes WHERE domain = $1`
	tag, err := g.store.pool.Exec(ctx, query, domain)
	if err != nil {
		return false, fmt.Errorf("delete cluster node: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ManifestsForStream implements cluster.ManifestSource over the
// stream_manifests table for the stats-aggregation helpers.
func (g *ClusterRegistryGateway) ManifestsForStream(streamName string) ([]cluster.ObjectStoreFormat, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `
		SELECT stream, time_lower_bound, format,
			events_ingested, events_ingested_lifetime, events_ingested_deleted,
			ingestion_size, ingestion_size_lifetime, ingestion_size_deleted,
			storage_size, storage_size_lifetime, storage_size_deleted
		FROM stream_manifests WHERE stream = $1
	`
	rows, err := g.store.pool.Query(ctx, query, streamName)
	if err != nil {
		return nil, fmt.Errorf("list stream manifests: %w", err)
	}
	defer rows.Close()

	var out []cluster.ObjectStoreFormat
	for rows.Next() {
		var m cluster.ObjectStoreFormat
		if err := rows.Scan(
			&m.Stream, &m.TimeLowerBound, &m.Format,
			&m.EventsIngested, &m.EventsIngestedLifetime, &m.EventsIngestedDeleted,
			&m.IngestionSize, &m.IngestionSizeLifetime, &m.IngestionSizeDeleted,
			&m.StorageSize, &m.StorageSizeLifetime, &m.StorageSizeDeleted,
		); err != nil {
			return nil, fmt.Errorf("scan stream manifest: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
