// Package evaluate scores a finished assignment against the demand it was
// built for and checks it against the capacity constraints.
package evaluate

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
	"github.com/mohammed-shakir/cache-placement/internal/placement/index"
)

var ErrOverCapacity = errors.New("cache over capacity")

type Result struct {
	// latency saved across all requests, in latency units x requests
	Saved         int64
	TotalRequests int64
	// Saved*1000/TotalRequests, truncated; 0 without requests
	Score int64
	// requests served by some cache rather than the origin
	CacheServed int64
}

// Evaluate serves every request from the fastest cache that holds the item
// and reaches the endpoint, falling back to the origin.
func Evaluate(in model.Input, a model.Assignment) (Result, error) {
	dem, err := index.BuildDemand(in.Items, in.Endpoints, in.Requests)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate: %w", err)
	}
	lat, err := index.BuildLatency(in.Caches, in.Endpoints)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate: %w", err)
	}

	holders := make(map[int][]int, len(in.Items))
	for cacheID, items := range a {
		for _, id := range items {
			holders[id] = append(holders[id], cacheID)
		}
	}

	var res Result
	for itemID, byEndpoint := range dem {
		for ep, count := range byEndpoint {
			if count == 0 {
				continue
			}
			res.TotalRequests += int64(count)
			origin := lat.ToOrigin[ep]
			best := origin
			for _, c := range holders[itemID] {
				if l, ok := lat.Reaches(c, ep); ok && l < best {
					best = l
				}
			}
			if best < origin {
				res.Saved += int64(origin-best) * int64(count)
				res.CacheServed += int64(count)
			}
		}
	}
	if res.TotalRequests > 0 {
		res.Score = res.Saved * 1000 / res.TotalRequests
	}
	return res, nil
}

// Validate checks cache and item ids and that no cache exceeds capacity.
func Validate(in model.Input, a model.Assignment) error {
	for cacheID, items := range a {
		if cacheID < 0 || cacheID >= in.Caches.Count {
			return fmt.Errorf("assignment names cache %d: %w", cacheID, model.ErrMalformedReference)
		}
		used := 0
		seen := make(map[int]struct{}, len(items))
		for _, id := range items {
			if id < 0 || id >= len(in.Items) {
				return fmt.Errorf("cache %d holds unknown item %d: %w", cacheID, id, model.ErrMalformedReference)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("cache %d holds item %d twice: %w", cacheID, id, model.ErrInvalidValue)
			}
			seen[id] = struct{}{}
			used += in.Items[id].Size
		}
		if used > in.Caches.Capacity {
			return fmt.Errorf("cache %d uses %d of %d: %w", cacheID, used, in.Caches.Capacity, ErrOverCapacity)
		}
	}
	return nil
}
