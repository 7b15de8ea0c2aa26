package cluster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/oriys/clusterctl/internal/logging"
	"github.com/oriys/clusterctl/internal/metrics"
)

// RoleSyncOp is the enumerated operation a role-sync broadcast performs.
type RoleSyncOp string

const (
	RoleSyncAdd    RoleSyncOp = "add"
	RoleSyncRemove RoleSyncOp = "remove"
)

// Broadcaster builds the per-op HTTP requests described in spec §4.3 and
// delegates the actual fan-out to Executor.
type Broadcaster struct {
	Registry RegistryGateway
	Exec     *Executor
}

func NewBroadcaster(registry RegistryGateway, exec *Executor) *Broadcaster {
	return &Broadcaster{Registry: registry, Exec: exec}
}

// peersForRole loads every peer of a role via the Registry Gateway. This is
// the one failure mode that must abort the whole call: metadata absence is
// a configuration bug, not a per-peer condition.
func (b *Broadcaster) peersForRole(ctx context.Context, role NodeRole) ([]NodeMetadata, error) {
	peers, err := b.Registry.NodesByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("load %s metadata: %w", role, err)
	}
	return peers, nil
}

// broadcast is the shared issue/record wrapper every sync op funnels
// through: it records the attempt, runs the fan-out, and records a
// failure if the fan-out propagated an error.
func (b *Broadcaster) broadcast(ctx context.Context, op string, role NodeRole, action Action) error {
	metrics.RecordBroadcastIssued(op)
	peers, err := b.peersForRole(ctx, role)
	if err != nil {
		metrics.RecordBroadcastFailed(op)
		return err
	}
	if err := b.Exec.ForEachLive(ctx, peers, action); err != nil {
		metrics.RecordBroadcastFailed(op)
		return err
	}
	return nil
}

// do issues a single authenticated request against a peer and applies the
// per-op failure policy: propagateNonSuccess controls whether a non-2xx
// response becomes an error (retention cleanup) or is merely logged
// (every other sync op). extraHeaders carries headers forwarded verbatim
// from the originating client request (e.g. stream sync's content-encoding).
func (b *Broadcaster) do(ctx context.Context, peer NodeMetadata, method, path string, body []byte, propagateNonSuccess bool, extraHeaders ...map[string]string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, peer.Domain+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", peer.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, headers := range extraHeaders {
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := b.Exec.Client.Do(req)
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Op().Warn("peer returned non-2xx", "domain", peer.Domain, "path", path, "status", resp.StatusCode)
		if propagateNonSuccess {
			return fmt.Errorf("peer %s non-success status %d for %s", peer.Domain, resp.StatusCode, path)
		}
	}
	return nil
}

// SyncStream broadcasts a stream create/update to every live ingestor,
// forwarding the original request body and any caller-selected headers
// (e.g. content-type variants) verbatim.
func (b *Broadcaster) SyncStream(ctx context.Context, name string, body []byte, forwardedHeaders map[string]string) error {
	path := "logstream/" + name + "/sync"
	return b.broadcast(ctx, "sync_stream", RoleIngestor, func(ctx context.Context, peer NodeMetadata) error {
		return b.do(ctx, peer, http.MethodPut, path, body, false, forwardedHeaders)
	})
}

// SyncUserCreate broadcasts a new user to every live ingestor.
func (b *Broadcaster) SyncUserCreate(ctx context.Context, userID string, body []byte) error {
	path := "user/" + userID + "/sync"
	return b.broadcast(ctx, "sync_user_create", RoleIngestor, func(ctx context.Context, peer NodeMetadata) error {
		return b.do(ctx, peer, http.MethodPost, path, body, false)
	})
}

// SyncUserDelete broadcasts user deletion to every live ingestor.
func (b *Broadcaster) SyncUserDelete(ctx context.Context, userID string) error {
	path := "user/" + userID + "/sync"
	return b.broadcast(ctx, "sync_user_delete", RoleIngestor, func(ctx context.Context, peer NodeMetadata) error {
		return b.do(ctx, peer, http.MethodDelete, path, nil, false)
	})
}

// SyncUserRole broadcasts a role set add/remove for a user. op must be
// RoleSyncAdd or RoleSyncRemove; any other value is rejected before fan-out
// per spec §4.3's "validate before fan-out" invariant.
func (b *Broadcaster) SyncUserRole(ctx context.Context, userID string, op RoleSyncOp, body []byte) error {
	if op != RoleSyncAdd && op != RoleSyncRemove {
		return fmt.Errorf("invalid role sync op: %q", op)
	}
	path := "user/" + userID + "/role/sync/" + string(op)
	return b.broadcast(ctx, "sync_user_role", RoleIngestor, func(ctx context.Context, peer NodeMetadata) error {
		return b.do(ctx, peer, http.MethodPatch, path, body, false)
	})
}

// SyncPasswordReset broadcasts a password reset to every live ingestor.
func (b *Broadcaster) SyncPasswordReset(ctx context.Context, userID string) error {
	path := "user/" + userID + "/generate-new-password/sync"
	return b.broadcast(ctx, "sync_password_reset", RoleIngestor, func(ctx context.Context, peer NodeMetadata) error {
		return b.do(ctx, peer, http.MethodPost, path, nil, false)
	})
}

// SyncRoleUpdate broadcasts a privilege list update for a role name.
func (b *Broadcaster) SyncRoleUpdate(ctx context.Context, roleName string, privileges []byte) error {
	path := "role/" + roleName + "/sync"
	return b.broadcast(ctx, "sync_role_update", RoleIngestor, func(ctx context.Context, peer NodeMetadata) error {
		return b.do(ctx, peer, http.MethodPut, path, privileges, false)
	})
}

// RetentionCleanup broadcasts a retention cleanup date list. Unlike every
// other sync op, a non-2xx response here is propagated as an error.
func (b *Broadcaster) RetentionCleanup(ctx context.Context, path string, dates []byte) error {
	return b.broadcast(ctx, "retention_cleanup", RoleIngestor, func(ctx context.Context, peer NodeMetadata) error {
		return b.do(ctx, peer, http.MethodPost, path, dates, true)
	})
}

// StreamDelete issues a delete against a caller-supplied URL suffix on
// every live ingestor; non-2xx is logged but never errors.
func (b *Broadcaster) StreamDelete(ctx context.Context, path string) error {
	return b.broadcast(ctx, "stream_delete", RoleIngestor, func(ctx context.Context, peer NodeMetadata) error {
		return b.do(ctx, peer, http.MethodDelete, path, nil, false)
	})
}

// DemoDataFetch fetches demo data from the first live ingestor only. Per
// spec §9's open question, there is intentionally no failover if this call
// fails after the first live peer was chosen.
func (b *Broadcaster) DemoDataFetch(ctx context.Context, action string) ([]byte, error) {
	metrics.RecordBroadcastIssued("demo_data_fetch")
	peers, err := b.peersForRole(ctx, RoleIngestor)
	if err != nil {
		metrics.RecordBroadcastFailed("demo_data_fetch")
		return nil, err
	}
	for _, peer := range peers {
		if !IsLive(ctx, b.Exec.Client, peer) {
			continue
		}
		path := "demodata?action=" + action
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer.Domain+path, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", peer.Token)

		resp, err := b.Exec.Client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("network: %w", err)
		}
		defer resp.Body.Close()
		b2, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("demo data peer %s non-success status %d", peer.Domain, resp.StatusCode)
		}
		return b2, nil
	}
	metrics.RecordBroadcastFailed("demo_data_fetch")
	return nil, fmt.Errorf("no live ingestor for demo data fetch")
}
