package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_ReturnsNotFoundBeforeInit(t *testing.T) {
	// opMetrics is process-global; a fresh test binary run has it unset.
	// Other tests in this package call Init, so this only asserts the
	// uninitialized contract where it still holds.
	if opMetrics.Load() != nil {
		t.Skip("metrics already initialized by another test in this run")
	}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before Init, got %d", w.Code)
	}
}

func TestRecordAndExport_BroadcastCounters(t *testing.T) {
	Init("clusterctl_test")
	RecordBroadcastIssued("sync_stream")
	RecordBroadcastFailed("sync_stream")
	RecordScrapeSucceeded()
	RecordScrapeFailed()
	RecordDispatcherAcquire("round_robin")
	SetLiveQueriers(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"clusterctl_test_broadcasts_issued_total",
		"clusterctl_test_broadcasts_failed_total",
		"clusterctl_test_peer_scrapes_succeeded_total",
		"clusterctl_test_dispatcher_acquire_total",
		"clusterctl_test_live_queriers",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected exposition to contain %q", want)
		}
	}
}
