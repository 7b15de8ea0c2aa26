package cluster

import "context"

// RegistryGateway is a facade over the external metastore returning typed
// node metadata per role. The metastore itself (persistence, schema,
// consistency) is an out-of-scope external collaborator; this interface is
// the only contract the rest of the control plane depends on.
type RegistryGateway interface {
	// NodesByRole returns every node registered under the given role.
	NodesByRole(ctx context.Context, role NodeRole) ([]NodeMetadata, error)
	// RemoveNode deletes a node by domain across every role partition,
	// reporting whether at least one partition actually had a matching row.
	RemoveNode(ctx context.Context, domain string) (removed bool, err error)
}
