package cluster

import (
	"context"
	"net/http"

	"github.com/oriys/clusterctl/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Executor is the generic bounded/unbounded parallel HTTP dispatcher that
// Broadcast Operations and the Cluster-wide Collector both sit on top of.
// It holds the single shared, concurrent-safe HTTP client reused for every
// outbound call (see spec §5 shared-resource policy).
type Executor struct {
	Client *http.Client
}

// NewExecutor builds an Executor around a shared client.
func NewExecutor(client *http.Client) *Executor {
	return &Executor{Client: client}
}

// Action is a per-peer unit of work dispatched by ForEachLive. It is
// responsible for its own HTTP call and must return nil on success or on a
// non-2xx response it has already logged; transport errors should be
// returned so the executor can surface them.
type Action func(ctx context.Context, peer NodeMetadata) error

// ForEachLive partitions peers into live/dead via the Liveness Probe,
// logs dead peers at warn level, then launches action for every live peer
// concurrently with unbounded parallelism. It returns the first error
// encountered while every launched action still runs to completion
// (errgroup.Wait always waits for all goroutines regardless of an earlier
// failure), preserving the best-effort side effects of the other peers.
func (e *Executor) ForEachLive(ctx context.Context, peers []NodeMetadata, action Action) error {
	return e.forEachLive(ctx, peers, action, 0)
}

// ForEachLiveBounded is the semaphore-capped variant used by the larger
// fan-outs (the metrics and billing collection passes) where the
// peer count can be large enough that unbounded parallelism would exhaust
// file descriptors.
func (e *Executor) ForEachLiveBounded(ctx context.Context, peers []NodeMetadata, limit int, action Action) error {
	return e.forEachLive(ctx, peers, action, limit)
}

func (e *Executor) forEachLive(ctx context.Context, peers []NodeMetadata, action Action, limit int) error {
	live := e.partitionLive(ctx, peers)

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, peer := range live {
		peer := peer
		g.Go(func() error {
			return action(ctx, peer)
		})
	}
	return g.Wait()
}

// partitionLive probes every peer concurrently and returns the live subset.
// Probing never holds any lock and is itself unbounded here; callers that
// need a bounded probe (the dispatcher's acquire phase) use probeLiveBounded.
func (e *Executor) partitionLive(ctx context.Context, peers []NodeMetadata) []NodeMetadata {
	type result struct {
		peer NodeMetadata
		live bool
	}
	results := make([]result, len(peers))

	var g errgroup.Group
	for i, peer := range peers {
		i, peer := i, peer
		g.Go(func() error {
			results[i] = result{peer: peer, live: IsLive(ctx, e.Client, peer)}
			return nil
		})
	}
	_ = g.Wait()

	live := make([]NodeMetadata, 0, len(peers))
	for _, r := range results {
		if r.live {
			live = append(live, r.peer)
		} else {
			logging.Op().Warn("peer not live", "domain", r.peer.Domain, "role", string(r.peer.Role))
		}
	}
	return live
}
