package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// GatewayInfo describes a gateway process sharing the metrics backend.
type GatewayInfo struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// GatewayStatus is one gateway's answer to a status query.
type GatewayStatus struct {
	Gateway GatewayInfo `json:"gateway"`
	Worlds  []int       `json:"worlds"`
	Err     error       `json:"-"`
}

// Total sums the gateway's world occupancies.
func (s GatewayStatus) Total() int {
	total := 0
	for _, n := range s.Worlds {
		total += n
	}
	return total
}

// maxParallel bounds concurrent status queries in FetchAll.
const maxParallel = 8

var httpClient = &http.Client{Timeout: 5 * time.Second}

// GetJSON issues a GET to url and decodes the JSON body into out.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusURL builds the status endpoint of a gateway address. A bare
// host:port is assumed to be plain HTTP.
func StatusURL(addr string) string {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + "/status"
}

// FetchStatus reads the per-world occupancy of the gateway at addr.
func FetchStatus(ctx context.Context, addr string) ([]int, error) {
	var worlds []int
	if err := GetJSON(ctx, StatusURL(addr), &worlds); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if worlds == nil {
		worlds = []int{}
	}
	return worlds, nil
}

// FetchAll queries every gateway concurrently. A failing gateway does not
// abort the others: its entry carries the error instead.
func FetchAll(ctx context.Context, gateways []GatewayInfo) []GatewayStatus {
	results := make([]GatewayStatus, len(gateways))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, gw := range gateways {
		i, gw := i, gw
		g.Go(func() error {
			worlds, err := FetchStatus(ctx, gw.Addr)
			results[i] = GatewayStatus{Gateway: gw, Worlds: worlds, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
