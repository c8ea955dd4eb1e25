// Package packer holds the capacity-bounded accumulator each cache fills
// during one strategy run.
package packer

import (
	"sort"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
)

type Cache struct {
	Capacity  int
	Remaining int

	items map[int]struct{}
}

func New(capacity int) *Cache {
	return &Cache{
		Capacity:  capacity,
		Remaining: capacity,
		items:     make(map[int]struct{}),
	}
}

// TryAdd stores the item iff it fits in the remaining capacity. A rejected
// item leaves the cache untouched. An item already held is rejected.
func (c *Cache) TryAdd(it model.Item) bool {
	if it.Size > c.Remaining {
		return false
	}
	if _, ok := c.items[it.ID]; ok {
		return false
	}
	c.Remaining -= it.Size
	c.items[it.ID] = struct{}{}
	return true
}

func (c *Cache) Len() int { return len(c.items) }

// Full reports whether nothing more can be stored, zero-size items aside.
func (c *Cache) Full() bool { return c.Remaining <= 0 }

// Items returns the stored item ids in ascending order.
func (c *Cache) Items() []int {
	out := make([]int, 0, len(c.items))
	for id := range c.items {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Set is the per-run collection of caches, indexed by cache id.
type Set []*Cache

func NewSet(info model.CacheInfo) Set {
	s := make(Set, max(info.Count, 0))
	for i := range s {
		s[i] = New(info.Capacity)
	}
	return s
}

// Full reports whether every cache is out of capacity.
func (s Set) Full() bool {
	for _, c := range s {
		if !c.Full() {
			return false
		}
	}
	return true
}

// Assignment snapshots the set as cache id -> ascending item ids.
func (s Set) Assignment() model.Assignment {
	out := make(model.Assignment, len(s))
	for id, c := range s {
		out[id] = c.Items()
	}
	return out
}
