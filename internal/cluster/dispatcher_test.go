package cluster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeRegistry implements RegistryGateway from a fixed in-memory map, keyed
// by role, for dispatcher and collector tests.
type fakeRegistry struct {
	byRole map[NodeRole][]NodeMetadata
}

func (f *fakeRegistry) NodesByRole(ctx context.Context, role NodeRole) ([]NodeMetadata, error) {
	return f.byRole[role], nil
}

func (f *fakeRegistry) RemoveNode(ctx context.Context, domain string) (bool, error) {
	return false, nil
}

func newLiveServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAcquire_RoundRobinsAcrossTwoQueriers(t *testing.T) {
	s1 := newLiveServer(t, http.StatusOK)
	s2 := newLiveServer(t, http.StatusOK)

	reg := &fakeRegistry{byRole: map[NodeRole][]NodeMetadata{
		RoleQuerier: {
			{Domain: s1.URL + "/", Token: "t1", Role: RoleQuerier},
			{Domain: s2.URL + "/", Token: "t2", Role: RoleQuerier},
		},
	}}
	d := NewQuerierDispatcher(reg, s1.Client())

	first, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	d.MarkAvailable(first.Domain)

	second, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if second.Domain == first.Domain {
		t.Fatalf("expected round-robin to pick a different querier, got %q twice", first.Domain)
	}
}

func TestAcquire_NoAvailableQuerierWhenRegistryEmpty(t *testing.T) {
	reg := &fakeRegistry{byRole: map[NodeRole][]NodeMetadata{}}
	d := NewQuerierDispatcher(reg, http.DefaultClient)

	if _, err := d.Acquire(context.Background()); err != ErrNoAvailableQuerier {
		t.Fatalf("expected ErrNoAvailableQuerier, got %v", err)
	}
}

func TestAcquire_FallsBackToLRUWhenAllBusy(t *testing.T) {
	s1 := newLiveServer(t, http.StatusOK)

	reg := &fakeRegistry{byRole: map[NodeRole][]NodeMetadata{
		RoleQuerier: {
			{Domain: s1.URL + "/", Token: "t1", Role: RoleQuerier},
		},
	}}
	d := NewQuerierDispatcher(reg, s1.Client())

	first, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	// Do not release; the only querier is now marked busy.

	second, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected LRU fallback to still hand out the busy querier, got error: %v", err)
	}
	if second.Domain != first.Domain {
		t.Fatalf("expected LRU fallback to return the only known querier")
	}
}

func TestSendQuery_ReleasesQuerierOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+LivenessPath {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	reg := &fakeRegistry{byRole: map[NodeRole][]NodeMetadata{
		RoleQuerier: {{Domain: srv.URL + "/", Token: "t1", Role: RoleQuerier}},
	}}
	d := NewQuerierDispatcher(reg, srv.Client())

	_, err := d.SendQuery(context.Background(), QueryRequest{Body: []byte(`{}`)})
	if err == nil {
		t.Fatalf("expected error on non-2xx response")
	}

	d.mu.Lock()
	entry, ok := d.queriers[srv.URL+"/"]
	d.mu.Unlock()
	if !ok {
		t.Fatalf("expected querier entry to still exist")
	}
	if !entry.Available {
		t.Fatalf("expected querier to be released (available=true) even on error, got %+v", entry)
	}
}

func TestSelectRoundRobin_PicksAvailableWhenLastUsedAbsent(t *testing.T) {
	d := &QuerierDispatcher{
		queriers: map[string]*QuerierStatus{
			"a": {Metadata: NodeMetadata{Domain: "a"}, Available: true},
			"b": {Metadata: NodeMetadata{Domain: "b"}, Available: true},
		},
	}
	d.lastUsed = "zzz-not-present"
	if got := d.selectRoundRobin(); got != "a" && got != "b" {
		t.Fatalf("expected a valid available domain when lastUsed is absent, got %q", got)
	}
}

func TestSelectLRU_PicksOldestLastUsed(t *testing.T) {
	older := NodeMetadata{Domain: "old"}
	newer := NodeMetadata{Domain: "new"}
	d := &QuerierDispatcher{
		queriers: map[string]*QuerierStatus{
			"old": {Metadata: older, Available: false},
			"new": {Metadata: newer, Available: false},
		},
	}
	// "old" has the zero LastUsed value, "new" has been touched; zero must
	// be treated as minimal so "old" wins.
	d.queriers["new"].LastUsed = d.queriers["new"].LastUsed.Add(1)
	if got := d.selectLRU(); got != "old" {
		t.Fatalf("expected LRU to pick %q, got %q", "old", got)
	}
}
