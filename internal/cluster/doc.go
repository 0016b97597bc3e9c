// Package cluster gives operators a view across gateway processes that
// share one metrics backend.
//
// Each gateway serves its per-world occupancy as a JSON integer array on
// GET /status. This package queries one gateway (FetchStatus) or several
// in parallel (FetchAll), keeping per-gateway failures separate so that
// one unreachable process does not hide the others.
//
// # Usage Example
//
//	statuses := cluster.FetchAll(ctx, []cluster.GatewayInfo{
//	    {Name: "gw-east", Addr: "gw-east:8000"},
//	    {Name: "gw-west", Addr: "gw-west:8000"},
//	})
//	for _, s := range statuses {
//	    if s.Err != nil {
//	        log.Printf("%s: %v", s.Gateway.Name, s.Err)
//	        continue
//	    }
//	    log.Printf("%s: %v (%d players)", s.Gateway.Name, s.Worlds, s.Total())
//	}
//
// All requests share one HTTP client with a 5 second timeout.
package cluster
