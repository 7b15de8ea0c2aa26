package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/oriys/clusterctl/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrNoAvailableQuerier is returned when the dispatcher cannot find any
// querier to hand out, either because the registry is empty or because
// pruning left it empty.
var ErrNoAvailableQuerier = fmt.Errorf("no available querier")

// livenessProbeConcurrency caps the liveness-probing phase of Acquire so a
// large querier fleet cannot exhaust file descriptors (spec §5).
const livenessProbeConcurrency = 10

// queryTimeout is the fixed deadline for sendQuery's POST (spec §4.8).
const queryTimeout = 300 * time.Second

// QueryRequest is the dispatcher's input envelope. The dispatcher never
// interprets its contents; it forwards them verbatim to the chosen
// querier.
type QueryRequest struct {
	Body     []byte
	Fields   bool
	Streaming bool
	SendNull bool
}

// QuerierDispatcher maintains the live-set of queriers and hands one out
// per query using round-robin over available entries, falling back to LRU
// when none is available. It is the sole owner of QUERIER_MAP and
// LAST_USED_QUERIER (spec §5): both are guarded by the same mutex so they
// are always acquired together, avoiding any lock-ordering hazard.
type QuerierDispatcher struct {
	Registry RegistryGateway
	Client   *http.Client

	mu           sync.Mutex
	queriers     map[string]*QuerierStatus
	lastUsed     string // domain, "" means unset
}

func NewQuerierDispatcher(registry RegistryGateway, client *http.Client) *QuerierDispatcher {
	return &QuerierDispatcher{
		Registry: registry,
		Client:   client,
		queriers: make(map[string]*QuerierStatus),
	}
}

// Acquire runs the full selection algorithm (spec §4.8 steps 1-7) and
// returns the metadata of the chosen querier. The caller must eventually
// call MarkAvailable with the returned domain, on every code path.
func (d *QuerierDispatcher) Acquire(ctx context.Context) (NodeMetadata, error) {
	peers, err := d.Registry.NodesByRole(ctx, RoleQuerier)
	if err != nil {
		return NodeMetadata{}, fmt.Errorf("load querier metadata: %w", err)
	}
	if len(peers) == 0 {
		return NodeMetadata{}, ErrNoAvailableQuerier
	}

	// Liveness probing happens before the lock is taken (spec §5: no
	// suspension may occur while holding the registry lock).
	live := probeLiveBounded(ctx, d.Client, peers, livenessProbeConcurrency)
	liveSet := make(map[string]NodeMetadata, len(live))
	for _, p := range live {
		liveSet[p.Domain] = p
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Reconcile the registry against the live set.
	for domain, meta := range liveSet {
		if existing, ok := d.queriers[domain]; ok {
			existing.Metadata = meta
		} else {
			d.queriers[domain] = &QuerierStatus{Metadata: meta, Available: true}
		}
	}
	for domain := range d.queriers {
		if _, ok := liveSet[domain]; !ok {
			delete(d.queriers, domain)
		}
	}

	metrics.SetLiveQueriers(len(d.queriers))

	chosen := d.selectRoundRobin()
	if chosen != "" {
		metrics.RecordDispatcherAcquire("round_robin")
	} else {
		chosen = d.selectLRU()
		if chosen != "" {
			metrics.RecordDispatcherAcquire("lru")
		}
	}
	if chosen == "" {
		return NodeMetadata{}, ErrNoAvailableQuerier
	}

	entry := d.queriers[chosen]
	entry.Available = false
	entry.LastUsed = time.Now()
	d.lastUsed = chosen
	return entry.Metadata, nil
}

// selectRoundRobin picks the next available domain after lastUsed in
// sorted domain order, wrapping to the first. Sorting keeps the rotation
// stable across calls despite Go's randomized map iteration order. Must be
// called with mu held.
func (d *QuerierDispatcher) selectRoundRobin() string {
	var available []string
	for domain, status := range d.queriers {
		if status.Available {
			available = append(available, domain)
		}
	}
	if len(available) == 0 {
		return ""
	}
	sort.Strings(available)
	if d.lastUsed == "" {
		return available[0]
	}
	for i, domain := range available {
		if domain == d.lastUsed {
			return available[(i+1)%len(available)]
		}
	}
	return available[0]
}

// selectLRU picks the entry with the smallest LastUsed, treating the zero
// value as minimal. Must be called with mu held.
func (d *QuerierDispatcher) selectLRU() string {
	var best string
	var bestTime time.Time
	first := true
	for domain, status := range d.queriers {
		if first || status.LastUsed.Before(bestTime) {
			best = domain
			bestTime = status.LastUsed
			first = false
		}
	}
	return best
}

// MarkAvailable releases a querier back to the available pool. LastUsed is
// never reset here so LRU ordering survives across release cycles.
func (d *QuerierDispatcher) MarkAvailable(domain string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.queriers[domain]; ok {
		entry.Available = true
	}
}

// QueryResult is the response to a dispatched query.
type QueryResult struct {
	Body    json.RawMessage
	Elapsed string
}

// SendQuery acquires a querier, dispatches the request, and releases the
// querier on every path (success, non-2xx, transport error, or parse
// error) before returning.
func (d *QuerierDispatcher) SendQuery(ctx context.Context, req QueryRequest) (QueryResult, error) {
	peer, err := d.Acquire(ctx)
	if err != nil {
		return QueryResult{}, err
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("fields", boolStr(req.Fields))
	q.Set("streaming", boolStr(req.Streaming))
	q.Set("send_null", boolStr(req.SendNull))
	target := peer.Domain + "api/v1/query?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(qctx, http.MethodPost, target, bytes.NewReader(req.Body))
	if err != nil {
		d.MarkAvailable(peer.Domain)
		return QueryResult{}, fmt.Errorf("build query request: %w", err)
	}
	httpReq.Header.Set("Authorization", peer.Token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		d.MarkAvailable(peer.Domain)
		return QueryResult{}, fmt.Errorf("network: %w", err)
	}
	defer resp.Body.Close()

	// Release happens immediately after the response headers are
	// received, not after the body (spec §4.8 step 3).
	d.MarkAvailable(peer.Domain)

	elapsed := resp.Header.Get("p-total-time-elapsed")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return QueryResult{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return QueryResult{}, fmt.Errorf("json parse: %s", string(body))
	}
	if !json.Valid(body) {
		return QueryResult{}, fmt.Errorf("json parse: %s", string(body))
	}
	return QueryResult{Body: json.RawMessage(body), Elapsed: elapsed}, nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// probeLiveBounded probes a peer list for liveness with a fixed
// concurrency cap, used by Acquire before the registry lock is taken.
// Mirrors Executor.partitionLive's indexed-results shape, bounded via
// errgroup.SetLimit instead of partitionLive's unbounded fan-out.
func probeLiveBounded(ctx context.Context, client *http.Client, peers []NodeMetadata, limit int) []NodeMetadata {
	type result struct {
		peer NodeMetadata
		live bool
	}
	results := make([]result, len(peers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, peer := range peers {
		i, peer := i, peer
		g.Go(func() error {
			results[i] = result{peer: peer, live: IsLive(gctx, client, peer)}
			return nil
		})
	}
	_ = g.Wait()

	live := make([]NodeMetadata, 0, len(peers))
	for _, r := range results {
		if r.live {
			live = append(live, r.peer)
		}
	}
	return live
}
