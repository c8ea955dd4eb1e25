// Package model defines core domain types shared across the service.
package model

import (
	"errors"
	"fmt"
	"sort"
)

// OriginID is the key under which an endpoint's raw latency table stores the
// latency to the origin datacenter.
const OriginID = -1

var (
	// ErrMalformedReference reports a record citing an unknown item, cache or endpoint.
	ErrMalformedReference = errors.New("malformed reference")
	// ErrInvalidValue reports a negative size, capacity, latency or count.
	ErrInvalidValue = errors.New("invalid value")
)

type Item struct {
	ID   int
	Size int
}

func (i Item) String() string {
	return fmt.Sprintf("item(%d, size=%d)", i.ID, i.Size)
}

type CacheInfo struct {
	Count    int
	Capacity int
}

// Endpoint carries the raw latency table, origin included under OriginID.
type Endpoint struct {
	ID        int
	Latencies map[int]int
}

type Request struct {
	ItemID     int
	EndpointID int
	Count      int
}

type Placement struct {
	ItemID  int
	CacheID int
}

type Input struct {
	Caches    CacheInfo
	Items     []Item
	Endpoints []Endpoint
	Requests  []Request
}

// Validate checks the input-level invariants the core relies on: dense ids
// and non-negative sizes. Cross references are checked by the indexes.
func (in Input) Validate() error {
	if in.Caches.Count < 0 || in.Caches.Capacity < 0 {
		return fmt.Errorf("cache info count=%d capacity=%d: %w",
			in.Caches.Count, in.Caches.Capacity, ErrInvalidValue)
	}
	for i, it := range in.Items {
		if it.ID != i {
			return fmt.Errorf("item at position %d has id %d: %w", i, it.ID, ErrMalformedReference)
		}
		if it.Size < 0 {
			return fmt.Errorf("item %d size %d: %w", it.ID, it.Size, ErrInvalidValue)
		}
	}
	for i, ep := range in.Endpoints {
		if ep.ID != i {
			return fmt.Errorf("endpoint at position %d has id %d: %w", i, ep.ID, ErrMalformedReference)
		}
	}
	return nil
}

// Assignment maps every cache id to the ascending ids of the items it stores.
type Assignment map[int][]int

// Placed returns the total number of (item, cache) placements.
func (a Assignment) Placed() int {
	n := 0
	for _, items := range a {
		n += len(items)
	}
	return n
}

// CacheIDs returns the cache ids in ascending order.
func (a Assignment) CacheIDs() []int {
	ids := make([]int, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Used returns the number of caches holding at least one item.
func (a Assignment) Used() int {
	n := 0
	for _, items := range a {
		if len(items) > 0 {
			n++
		}
	}
	return n
}
