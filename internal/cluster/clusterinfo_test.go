package cluster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGatherClusterInfo_MarksUnreachableOnMissingStaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	reg := &fakeRegistry{byRole: map[NodeRole][]NodeMetadata{
		RolePrism:    {{Domain: srv.URL + "/", Role: RolePrism}},
		RoleQuerier:  nil,
		RoleIngestor: nil,
		RoleIndexer:  nil,
	}}

	info, err := GatherClusterInfo(context.Background(), reg, srv.Client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(info))
	}
	if info[0].Reachable {
		t.Fatalf("expected entry with missing staging field to be unreachable: %+v", info[0])
	}
	if info[0].LastError == "" {
		t.Fatalf("expected LastError to be populated")
	}
}

func TestGatherClusterInfo_ReachableOnValidStaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"staging":"/tmp/staging"}`))
	}))
	defer srv.Close()

	reg := &fakeRegistry{byRole: map[NodeRole][]NodeMetadata{
		RoleQuerier: {{Domain: srv.URL + "/", Role: RoleQuerier}},
	}}

	info, err := GatherClusterInfo(context.Background(), reg, srv.Client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info) != 1 || !info[0].Reachable || info[0].StagingPath != "/tmp/staging" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestGatherClusterInfo_AbortsOnMetadataError(t *testing.T) {
	reg := &erroringRegistry{}
	if _, err := GatherClusterInfo(context.Background(), reg, http.DefaultClient); err == nil {
		t.Fatalf("expected metadata load failure to abort the whole call")
	}
}

type erroringRegistry struct{}

func (e *erroringRegistry) NodesByRole(ctx context.Context, role NodeRole) ([]NodeMetadata, error) {
	return nil, errBoom
}

func (e *erroringRegistry) RemoveNode(ctx context.Context, domain string) (bool, error) {
	return false, nil
}
