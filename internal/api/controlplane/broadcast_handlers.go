package controlplane

import (
	"io"
	"net/http"

	"github.com/oriys/clusterctl/internal/cluster"
)

// registerBroadcastRoutes wires the operator-facing subset of broadcast
// operations (spec §4.14): the ones an admin triggers by hand rather than
// the ingestion API invoking internally.
func (h *Handler) registerBroadcastRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /cluster/stream/{name}/sync", h.SyncStream)
	mux.HandleFunc("POST /cluster/retention/cleanup", h.RetentionCleanup)
	mux.HandleFunc("DELETE /cluster/stream/{name}", h.StreamDelete)
}

// SyncStream implements POST /cluster/stream/{name}/sync: forwards the
// request body verbatim to every live ingestor.
func (h *Handler) SyncStream(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	headers := map[string]string{}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		headers["Content-Type"] = ct
	}
	if err := h.Broadcaster.SyncStream(r.Context(), name, body, headers); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RetentionCleanup implements POST /cluster/retention/cleanup: propagates
// the first non-2xx response per spec §4.3's retention-cleanup policy. The
// request body is the date list forwarded verbatim to every ingestor.
func (h *Handler) RetentionCleanup(w http.ResponseWriter, r *http.Request) {
	dates, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Broadcaster.RetentionCleanup(r.Context(), "logstream/retention/cleanup", dates); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// StreamDelete implements DELETE /cluster/stream/{name}: never propagates
// non-2xx per spec §4.3's stream-delete policy, only transport errors.
func (h *Handler) StreamDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.Broadcaster.StreamDelete(r.Context(), "logstream/"+name); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}
