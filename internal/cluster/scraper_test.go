package cluster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const exposition = `
# HELP parseable_total_events_ingested_by_date Total events ingested
# TYPE parseable_total_events_ingested_by_date counter
parseable_total_events_ingested_by_date{date="2026-07-30"} 12
# HELP parseable_some_gauge A gauge that must be dropped
# TYPE parseable_some_gauge gauge
parseable_some_gauge 99
`

func TestParseExposition_KeepsOnlyCounters(t *testing.T) {
	samples, err := parseExposition(strings.NewReader(exposition))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected only the counter family to survive, got %d samples", len(samples))
	}
	if samples[0].Metric != "parseable_total_events_ingested_by_date" {
		t.Fatalf("unexpected metric name: %q", samples[0].Metric)
	}
	if samples[0].Labels["date"] != "2026-07-30" {
		t.Fatalf("expected date label to be flattened, got %+v", samples[0].Labels)
	}
	if samples[0].Value != 12 {
		t.Fatalf("expected value 12, got %v", samples[0].Value)
	}
}

func TestScrape_DeadPeerReturnsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	peer := NodeMetadata{Domain: srv.URL + "/", Token: "t1", Role: RoleIngestor}
	srv.Close()

	_, ok := Scrape(context.Background(), http.DefaultClient, peer)
	if ok {
		t.Fatalf("expected scrape of a dead peer to report false")
	}
}

func TestScrape_LivePeerParsesSamples(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(exposition))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	peer := NodeMetadata{Domain: srv.URL + "/", Token: "t1", Role: RoleIngestor}
	samples, ok := Scrape(context.Background(), srv.Client(), peer)
	if !ok {
		t.Fatalf("expected scrape of a live peer to succeed")
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
}
