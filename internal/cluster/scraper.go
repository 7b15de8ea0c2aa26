package cluster

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/oriys/clusterctl/internal/logging"
	"github.com/oriys/clusterctl/internal/metrics"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// MetricsPath is the well-known Prometheus exposition path on every peer.
const MetricsPath = "metrics"

// Sample is a single Prometheus exposition line parsed into its name,
// labels, and value. Only Counter-kind samples are produced by Scrape; the
// billing pipeline has no use for Gauges/Histograms, and the operational
// metrics adapter reads from the same sample set for the families it cares
// about.
type Sample struct {
	Metric string
	Labels map[string]string
	Value  float64
}

// SampleSet is the full set of counter samples scraped from one peer.
type SampleSet []Sample

// Scrape fetches /metrics from a peer and parses it into a SampleSet. A
// dead peer, transport error, or non-2xx response is non-fatal for
// collection: it is logged and reported via the returned bool rather than
// an error, matching spec §4.4's Option<SampleSet> contract.
func Scrape(ctx context.Context, client *http.Client, peer NodeMetadata) (SampleSet, bool) {
	if !IsLive(ctx, client, peer) {
		logging.Op().Warn("scrape skipped: peer not live", "domain", peer.Domain)
		metrics.RecordScrapeFailed()
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer.Domain+MetricsPath, nil)
	if err != nil {
		logging.Op().Warn("scrape build request failed", "domain", peer.Domain, "err", err)
		metrics.RecordScrapeFailed()
		return nil, false
	}
	req.Header.Set("Authorization", peer.Token)

	resp, err := client.Do(req)
	if err != nil {
		logging.Op().Warn("scrape network error", "domain", peer.Domain, "err", err)
		metrics.RecordScrapeFailed()
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Op().Warn("scrape non-2xx", "domain", peer.Domain, "status", resp.StatusCode)
		metrics.RecordScrapeFailed()
		return nil, false
	}

	samples, err := parseExposition(resp.Body)
	if err != nil {
		logging.Op().Warn("scrape parse error", "domain", peer.Domain, "err", err)
		metrics.RecordScrapeFailed()
		return nil, false
	}
	metrics.RecordScrapeSucceeded()
	return samples, true
}

// parseExposition decodes a Prometheus text-exposition stream and flattens
// every Counter metric family's data points into Samples, one per label
// tuple. Gauges and Histograms are intentionally dropped here.
func parseExposition(body io.Reader) (SampleSet, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(body)
	if err != nil {
		return nil, fmt.Errorf("parse exposition: %w", err)
	}

	var samples SampleSet
	for name, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			samples = append(samples, Sample{
				Metric: name,
				Labels: labels,
				Value:  m.GetCounter().GetValue(),
			})
		}
	}
	return samples, nil
}
