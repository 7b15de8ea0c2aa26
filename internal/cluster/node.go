// Package cluster implements the control-plane subsystem shared by every
// node in the log-ingestion/query cluster: membership and liveness,
// authenticated fan-out to peers, Prometheus scraping and billing
// aggregation, and the querier load-balancing dispatcher.
package cluster

import (
	"strings"
	"time"
)

// NodeRole identifies the responsibility a peer plays in the cluster.
type NodeRole string

const (
	RoleIngestor NodeRole = "ingestor"
	RoleIndexer  NodeRole = "indexer"
	RoleQuerier  NodeRole = "querier"
	RolePrism    NodeRole = "prism"
)

// Roles lists every role the Cluster-wide Collector iterates.
var Roles = []NodeRole{RolePrism, RoleQuerier, RoleIngestor, RoleIndexer}

// NodeMetadata identifies a peer: its normalized base URL, the bearer token
// the control plane must present to authenticate as that peer's trusted
// internal client, and its role tag. It is sourced from the metastore and
// treated as immutable for the duration of a single fetch cycle.
type NodeMetadata struct {
	Domain string
	Token  string
	Role   NodeRole
}

// NormalizeDomain ensures a peer base URL carries a scheme and exactly one
// trailing slash, so all downstream URL-building can simply concatenate.
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(raw)
	if d == "" {
		return d
	}
	if !strings.HasPrefix(d, "http://") && !strings.HasPrefix(d, "https://") {
		d = "https://" + d
	}
	d = strings.TrimRight(d, "/")
	return d + "/"
}

// QuerierStatus is the control-plane-local record the dispatcher keeps for
// each querier it has observed live. available=false means the entry is
// currently on loan to an in-flight query; the dispatcher guarantees it is
// always eventually set back to true via MarkAvailable.
type QuerierStatus struct {
	Metadata NodeMetadata
	// Available marks whether this entry is currently unassigned.
	Available bool
	// LastUsed is the instant this entry was last handed out. Zero value
	// means "never used", which LRU selection treats as the minimum.
	LastUsed time.Time
}
