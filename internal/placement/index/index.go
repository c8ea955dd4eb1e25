// Package index builds the demand and latency lookups the gain model reads.
package index

import (
	"fmt"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
)

// Demand maps item id -> endpoint id -> request count. Every known item has
// an entry, possibly empty.
type Demand map[int]map[int]int

// Total returns the request volume for an item across all endpoints.
func (d Demand) Total(itemID int) int64 {
	var n int64
	for _, c := range d[itemID] {
		n += int64(c)
	}
	return n
}

// Latency holds the cache and origin latencies with the origin sentinel split out.
type Latency struct {
	// cache id -> endpoint id -> latency; absence means unreachable
	ToCache map[int]map[int]int
	// endpoint id -> latency to origin
	ToOrigin map[int]int
}

// Reaches reports the latency from cache to endpoint, if the cache serves it.
func (l Latency) Reaches(cacheID, endpointID int) (int, bool) {
	lat, ok := l.ToCache[cacheID][endpointID]
	return lat, ok
}

// BuildDemand indexes requests by item then endpoint. A later record for the
// same pair overwrites an earlier one.
func BuildDemand(items []model.Item, endpoints []model.Endpoint, requests []model.Request) (Demand, error) {
	out := make(Demand, len(items))
	for _, it := range items {
		out[it.ID] = map[int]int{}
	}

	known := make(map[int]struct{}, len(endpoints))
	for _, ep := range endpoints {
		known[ep.ID] = struct{}{}
	}

	for i, r := range requests {
		byEndpoint, ok := out[r.ItemID]
		if !ok {
			return nil, fmt.Errorf("request %d: unknown item %d: %w", i, r.ItemID, model.ErrMalformedReference)
		}
		if _, ok := known[r.EndpointID]; !ok {
			return nil, fmt.Errorf("request %d: unknown endpoint %d: %w", i, r.EndpointID, model.ErrMalformedReference)
		}
		if r.Count < 0 {
			return nil, fmt.Errorf("request %d: count %d: %w", i, r.Count, model.ErrInvalidValue)
		}
		byEndpoint[r.EndpointID] = r.Count
	}
	return out, nil
}

// BuildLatency partitions each endpoint's raw table into cache and origin
// lookups. Every cache id in [0, caches.Count) gets an entry.
func BuildLatency(caches model.CacheInfo, endpoints []model.Endpoint) (Latency, error) {
	l := Latency{
		ToCache:  make(map[int]map[int]int, caches.Count),
		ToOrigin: make(map[int]int, len(endpoints)),
	}
	for c := 0; c < caches.Count; c++ {
		l.ToCache[c] = map[int]int{}
	}

	for _, ep := range endpoints {
		origin, ok := ep.Latencies[model.OriginID]
		if !ok {
			return Latency{}, fmt.Errorf("endpoint %d: missing origin latency: %w", ep.ID, model.ErrMalformedReference)
		}
		if origin < 0 {
			return Latency{}, fmt.Errorf("endpoint %d: origin latency %d: %w", ep.ID, origin, model.ErrInvalidValue)
		}
		l.ToOrigin[ep.ID] = origin

		for cacheID, lat := range ep.Latencies {
			if cacheID == model.OriginID {
				continue
			}
			byEndpoint, ok := l.ToCache[cacheID]
			if !ok {
				return Latency{}, fmt.Errorf("endpoint %d: unknown cache %d: %w", ep.ID, cacheID, model.ErrMalformedReference)
			}
			if lat < 0 {
				return Latency{}, fmt.Errorf("endpoint %d: cache %d latency %d: %w", ep.ID, cacheID, lat, model.ErrInvalidValue)
			}
			byEndpoint[ep.ID] = lat
		}
	}
	return l, nil
}
