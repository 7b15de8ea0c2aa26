// Package controlplane implements the Admin HTTP Surface (spec §4.9): thin
// adapters over the Node Registry Gateway, Cluster-wide Collector, and
// Broadcaster. No route dispatches queries through the Querier Dispatcher.
package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/oriys/clusterctl/internal/cluster"
)

// Handler holds every collaborator the admin surface adapts.
type Handler struct {
	Registry    cluster.RegistryGateway
	Collector   *cluster.Collector
	Dispatcher  *cluster.QuerierDispatcher
	Broadcaster *cluster.Broadcaster
	HTTPClient  *http.Client
}

// RegisterRoutes registers the admin HTTP surface on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /cluster/info", h.ClusterInfo)
	mux.HandleFunc("GET /cluster/metrics", h.ClusterMetrics)
	mux.HandleFunc("POST /cluster/node/{url}", h.RemoveNode)
	h.registerBroadcastRoutes(mux)
}

// ClusterInfo implements GET /cluster/info: fan-out across the four roles
// hitting /about on each peer, assembled into a ClusterInfo array.
func (h *Handler) ClusterInfo(w http.ResponseWriter, r *http.Request) {
	info, err := cluster.GatherClusterInfo(r.Context(), h.Registry, h.HTTPClient)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if info == nil {
		info = []cluster.ClusterInfo{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

// ClusterMetrics implements GET /cluster/metrics: a live collection pass
// returning the operational Metrics list.
func (h *Handler) ClusterMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.Collector.CollectMetrics(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if metrics == nil {
		metrics = []cluster.Metrics{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(metrics)
}

// RemoveNode implements POST /cluster/node/{url}: rejects removal of a
// still-live node with 400, otherwise deletes it from every role
// partition, succeeding if at least one partition reported a removal.
func (h *Handler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("url")
	domain, err := url.QueryUnescape(raw)
	if err != nil || strings.TrimSpace(domain) == "" {
		http.Error(w, "invalid node url", http.StatusBadRequest)
		return
	}
	domain = cluster.NormalizeDomain(domain)

	if h.isNodeLive(r.Context(), domain) {
		http.Error(w, "node is live; refusing to remove", http.StatusBadRequest)
		return
	}

	removed, err := h.Registry.RemoveNode(r.Context(), domain)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "node not found", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("node removed"))
}

// isNodeLive probes the target domain across every role's metadata to
// decide whether RemoveNode must reject the request.
func (h *Handler) isNodeLive(ctx context.Context, domain string) bool {
	for _, role := range cluster.Roles {
		peers, err := h.Registry.NodesByRole(ctx, role)
		if err != nil {
			continue
		}
		for _, peer := range peers {
			if peer.Domain == domain && cluster.IsLive(ctx, h.HTTPClient, peer) {
				return true
			}
		}
	}
	return false
}
