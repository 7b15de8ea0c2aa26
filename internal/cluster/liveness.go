package cluster

import (
	"context"
	"net/http"
)

// LivenessPath is the well-known path a peer is probed on before any
// broadcast or selection decision touches it.
const LivenessPath = "liveness"

// IsLive issues an authenticated GET against the peer's liveness path.
// Any transport error or non-2xx status is reported as not-live; this
// function never returns an error, matching the "must not throw" contract
// of the liveness probe.
func IsLive(ctx context.Context, client *http.Client, peer NodeMetadata) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer.Domain+LivenessPath, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", peer.Token)

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
