package cluster

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oriys/clusterctl/internal/logging"
)

// IngestSink is the opaque callback the Periodic Scheduler hands its
// serialized artifacts to. The stream ingestion path itself is an
// out-of-scope external collaborator (spec §1); this interface is the only
// contract the scheduler depends on.
type IngestSink interface {
	Ingest(ctx context.Context, stream string, payload []byte) error
}

// Scheduler fires the Cluster-wide Collector on a fixed interval and
// forwards its outputs into the internal ingestion sink. It must never
// die: every error, from either collection or ingestion, is logged and
// swallowed.
type Scheduler struct {
	Collector    *Collector
	Sink         IngestSink
	TickInterval time.Duration // default 60s
	PollInterval time.Duration // default 10s

	stopCh   chan struct{}
	stopOnce sync.Once
}

const (
	DefaultTickInterval = time.Minute
	DefaultPollInterval = 10 * time.Second
)

func NewScheduler(collector *Collector, sink IngestSink) *Scheduler {
	return &Scheduler{
		Collector:    collector,
		Sink:         sink,
		TickInterval: DefaultTickInterval,
		PollInterval: DefaultPollInterval,
		stopCh:       make(chan struct{}),
	}
}

// Start runs the tick loop until ctx is cancelled or Stop is called. The
// loop polls for shutdown every PollInterval between firings, so shutdown
// latency is bounded even on a long TickInterval.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			if now.Sub(lastTick) < s.TickInterval {
				continue
			}
			lastTick = now
			s.runTick(ctx)
		}
	}
}

// Stop signals the tick loop to exit. Safe to call more than once — a
// caller that both defers Stop and calls it explicitly on a shutdown signal
// must not panic on the redundant call.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// runTick performs one collection+ingestion pass. Each step is
// independent: a failure or empty result in the metrics step does not
// block the billing step (spec §4.7).
func (s *Scheduler) runTick(ctx context.Context) {
	metrics, err := s.Collector.CollectMetrics(ctx)
	if err != nil {
		logging.Op().Warn("scheduler: metrics collection failed", "err", err)
	} else if len(metrics) > 0 {
		if err := s.ingest(ctx, "pmeta", metrics); err != nil {
			logging.Op().Warn("scheduler: metrics ingest failed", "err", err)
		}
	}

	billing, err := s.Collector.CollectBilling(ctx)
	if err != nil {
		logging.Op().Warn("scheduler: billing collection failed", "err", err)
	} else if len(billing) > 0 {
		if err := s.ingest(ctx, "pbilling", billing); err != nil {
			logging.Op().Warn("scheduler: billing ingest failed", "err", err)
		}
	}
}

func (s *Scheduler) ingest(ctx context.Context, stream string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Sink.Ingest(ctx, stream, payload)
}
