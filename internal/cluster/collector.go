package cluster

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
)

// liveScrapeConcurrency bounds per-role peer scraping so a large querier or
// ingestor fleet cannot exhaust file descriptors during a collection pass.
const liveScrapeConcurrency = 16

// Collector runs the Metrics Scraper across every role in parallel and
// produces the two artifact streams the Periodic Scheduler ingests.
type Collector struct {
	Registry RegistryGateway
	Client   *http.Client
	Executor *Executor
}

func NewCollector(registry RegistryGateway, client *http.Client) *Collector {
	return &Collector{Registry: registry, Client: client, Executor: NewExecutor(client)}
}

// CollectMetrics runs the operational-metrics variant of collectAll: scrape
// every live peer across all four roles and return one Metrics row per
// peer that answered. A metadata-load failure for any role aborts the
// entire call; a scrape failure for an individual peer is logged and
// skipped (see Scrape).
func (c *Collector) CollectMetrics(ctx context.Context) ([]Metrics, error) {
	perRole, err := collectAll(ctx, c, func(samples SampleSet, peer NodeMetadata) []Metrics {
		return []Metrics{ExtractMetrics(samples, peer.Domain, peer.Role)}
	})
	if err != nil {
		return nil, err
	}
	var out []Metrics
	for _, role := range perRole {
		out = append(out, role...)
	}
	return out, nil
}

// CollectBilling runs the billing variant of collectAll, flattening every
// role's events into one slice.
func (c *Collector) CollectBilling(ctx context.Context) ([]BillingMetricEvent, error) {
	perRole, err := collectAll(ctx, c, func(samples SampleSet, peer NodeMetadata) []BillingMetricEvent {
		return ExtractBillingMetrics(samples, peer.Domain, peer.Role)
	})
	if err != nil {
		return nil, err
	}
	var out []BillingMetricEvent
	for _, role := range perRole {
		out = append(out, role...)
	}
	return out, nil
}

// collectAll loads metadata for every role and scrapes all its peers in
// parallel, producing a []T per role via extract. Metadata-load failure on
// any role aborts the whole call (spec §4.6); individual scrape failures
// are logged and skipped inside Scrape. Both the metrics and billing
// variants share this shape, differing only in extract.
func collectAll[T any](ctx context.Context, c *Collector, extract func(SampleSet, NodeMetadata) []T) ([][]T, error) {
	results := make([][]T, len(Roles))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range Roles {
		i, role := i, role
		g.Go(func() error {
			peers, err := c.Registry.NodesByRole(gctx, role)
			if err != nil {
				return fmt.Errorf("load %s metadata: %w", role, err)
			}
			results[i] = scrapeRole(gctx, c.Executor, peers, extract)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// scrapeRole scrapes every peer of a single role in parallel, bounded by
// liveScrapeConcurrency, and flattens each peer's extracted items together.
// Runs on Executor.ForEachLiveBounded rather than a second hand-rolled
// semaphore, matching the bounded fan-out shape used everywhere else in
// this package.
func scrapeRole[T any](ctx context.Context, exec *Executor, peers []NodeMetadata, extract func(SampleSet, NodeMetadata) []T) []T {
	var mu sync.Mutex
	var out []T

	_ = exec.ForEachLiveBounded(ctx, peers, liveScrapeConcurrency, func(actx context.Context, peer NodeMetadata) error {
		samples, ok := Scrape(actx, exec.Client, peer)
		if !ok {
			return nil
		}
		items := extract(samples, peer)
		mu.Lock()
		out = append(out, items...)
		mu.Unlock()
		return nil
	})
	return out
}
