package controlplane

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oriys/clusterctl/internal/cluster"
)

type fakeRegistry struct {
	byRole map[cluster.NodeRole][]cluster.NodeMetadata
	removed map[string]bool
}

func (f *fakeRegistry) NodesByRole(ctx context.Context, role cluster.NodeRole) ([]cluster.NodeMetadata, error) {
	return f.byRole[role], nil
}

func (f *fakeRegistry) RemoveNode(ctx context.Context, domain string) (bool, error) {
	if f.removed == nil {
		return false, nil
	}
	return f.removed[domain], nil
}

func TestRemoveNode_RejectsLiveNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	domain := srv.URL + "/"
	reg := &fakeRegistry{
		byRole:  map[cluster.NodeRole][]cluster.NodeMetadata{cluster.RoleIngestor: {{Domain: domain}}},
		removed: map[string]bool{domain: true},
	}
	h := &Handler{Registry: reg, HTTPClient: srv.Client()}

	req := httptest.NewRequest(http.MethodPost, "/cluster/node/"+domain, nil)
	req.SetPathValue("url", domain)
	w := httptest.NewRecorder()
	h.RemoveNode(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a live node, got %d", w.Code)
	}
}

func TestRemoveNode_SucceedsForDeadNode(t *testing.T) {
	domain := "http://127.0.0.1:1/"
	reg := &fakeRegistry{
		byRole:  map[cluster.NodeRole][]cluster.NodeMetadata{cluster.RoleIngestor: {{Domain: domain}}},
		removed: map[string]bool{domain: true},
	}
	h := &Handler{Registry: reg, HTTPClient: http.DefaultClient}

	req := httptest.NewRequest(http.MethodPost, "/cluster/node/"+domain, nil)
	req.SetPathValue("url", domain)
	w := httptest.NewRecorder()
	h.RemoveNode(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a dead, removable node, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRemoveNode_400WhenNothingRemoved(t *testing.T) {
	reg := &fakeRegistry{byRole: map[cluster.NodeRole][]cluster.NodeMetadata{}}
	h := &Handler{Registry: reg, HTTPClient: http.DefaultClient}

	req := httptest.NewRequest(http.MethodPost, "/cluster/node/unknown.example.com", nil)
	req.SetPathValue("url", "unknown.example.com")
	w := httptest.NewRecorder()
	h.RemoveNode(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when nothing was removed, got %d", w.Code)
	}
}

func TestClusterMetrics_ReturnsEmptyArrayNotNull(t *testing.T) {
	reg := &fakeRegistry{byRole: map[cluster.NodeRole][]cluster.NodeMetadata{}}
	h := &Handler{Registry: reg, Collector: cluster.NewCollector(reg, http.DefaultClient), HTTPClient: http.DefaultClient}

	req := httptest.NewRequest(http.MethodGet, "/cluster/metrics", nil)
	w := httptest.NewRecorder()
	h.ClusterMetrics(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "[]\n" {
		t.Fatalf("expected empty JSON array body, got %q", got)
	}
}
