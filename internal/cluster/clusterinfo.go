package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// AboutPath is the peer endpoint ClusterInfo hits instead of /metrics.
const AboutPath = "about"

// ClusterInfo is the per-node snapshot the /cluster/info admin endpoint
// reports. reachable=false implies StagingPath is empty and LastError/
// LastStatus may be populated.
type ClusterInfo struct {
	Domain          string   `json:"domain"`
	Reachable       bool     `json:"reachable"`
	StagingPath     string   `json:"staging_path"`
	StorageEndpoint string   `json:"storage_endpoint,omitempty"`
	LastError       string   `json:"last_error,omitempty"`
	LastStatus      string   `json:"last_status,omitempty"`
	Role            NodeRole `json:"role"`
}

type aboutResponse struct {
	Staging string `json:"staging"`
}

// GatherClusterInfo hits /about on every peer across all four roles in
// parallel and assembles one ClusterInfo per peer.
func GatherClusterInfo(ctx context.Context, registry RegistryGateway, client *http.Client) ([]ClusterInfo, error) {
	perRole := make([][]ClusterInfo, len(Roles))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range Roles {
		i, role := i, role
		g.Go(func() error {
			peers, err := registry.NodesByRole(gctx, role)
			if err != nil {
				return fmt.Errorf("load %s metadata: %w", role, err)
			}
			perRole[i] = gatherRole(gctx, client, peers, role)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []ClusterInfo
	for _, infos := range perRole {
		all = append(all, infos...)
	}
	return all, nil
}

func gatherRole(ctx context.Context, client *http.Client, peers []NodeMetadata, role NodeRole) []ClusterInfo {
	out := make([]ClusterInfo, len(peers))
	done := make(chan int, len(peers))
	for i, peer := range peers {
		i, peer := i, peer
		go func() {
			out[i] = fetchAbout(ctx, client, peer, role)
			done <- i
		}()
	}
	for range peers {
		<-done
	}
	return out
}

func fetchAbout(ctx context.Context, client *http.Client, peer NodeMetadata, role NodeRole) ClusterInfo {
	info := ClusterInfo{Domain: peer.Domain, Role: role}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer.Domain+AboutPath, nil)
	if err != nil {
		info.LastError = err.Error()
		return info
	}
	req.Header.Set("Authorization", peer.Token)

	resp, err := client.Do(req)
	if err != nil {
		info.LastError = err.Error()
		return info
	}
	defer resp.Body.Close()

	info.LastStatus = resp.Status
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		info.LastError = fmt.Sprintf("non-success status %d", resp.StatusCode)
		return info
	}

	var body aboutResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		info.LastError = fmt.Sprintf("invalid about response: %v", err)
		return info
	}
	if body.Staging == "" {
		info.LastError = "about response missing staging field"
		return info
	}

	info.Reachable = true
	info.StagingPath = body.Staging
	return info
}
