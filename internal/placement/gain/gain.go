// Package gain computes, for every (item, cache) pair, the latency saved by
// placing the item on the cache and a comparable score under a policy.
package gain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
	"github.com/mohammed-shakir/cache-placement/internal/placement/index"
)

var ErrUnknownPolicy = errors.New("unknown scoring policy")

type Policy int

const (
	// PureGain scores a pair by its raw latency saving.
	PureGain Policy = iota
	// GainOverCost divides the saving by the item size.
	GainOverCost
	// GainOverAudience divides the saving by the requests it covers.
	GainOverAudience
)

func (p Policy) String() string {
	switch p {
	case PureGain:
		return "pure"
	case GainOverCost:
		return "cost"
	case GainOverAudience:
		return "audience"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts the short names and a few long aliases.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pure", "pure-gain", "puregain":
		return PureGain, nil
	case "cost", "gain-over-cost", "gainovercost":
		return GainOverCost, nil
	case "audience", "gain-over-audience", "gainoveraudience":
		return GainOverAudience, nil
	default:
		return PureGain, fmt.Errorf("%w %q", ErrUnknownPolicy, s)
	}
}

// Breakdown is the per-endpoint saving of one (item, cache) pair.
type Breakdown struct {
	Item  int
	Cache int
	Size  int

	// endpoint id -> saving; only endpoints with demand the cache reaches
	Gains map[int]int64

	// requests covered by Gains' endpoints
	Audience int64
	Raw      int64
	Score    int64
}

// Score aggregates a raw saving under policy p. Integer division truncates
// toward zero. A zero-size item scores its raw saving under GainOverCost.
func Score(p Policy, raw, audience int64, size int) int64 {
	switch p {
	case GainOverCost:
		if size <= 0 {
			return raw
		}
		return raw / int64(size)
	case GainOverAudience:
		if audience == 0 {
			return 0
		}
		return raw / audience
	default:
		return raw
	}
}

// Rescore re-sums Gains into Raw and recomputes Score.
func (b *Breakdown) Rescore(p Policy) {
	var raw int64
	for _, g := range b.Gains {
		raw += g
	}
	b.Raw = raw
	b.Score = Score(p, raw, b.Audience, b.Size)
}

// Less orders breakdowns by score descending, then item id, then cache id.
func Less(a, b *Breakdown) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Item != b.Item {
		return a.Item < b.Item
	}
	return a.Cache < b.Cache
}

const maxPairHint = 1 << 16

// pairHint sizes the table up front without trusting the product of two
// caller-supplied counts.
func pairHint(items, caches int) int {
	if items <= 0 || caches <= 0 {
		return 0
	}
	if items > maxPairHint/caches {
		return maxPairHint
	}
	return items * caches
}

type Table struct {
	Policy Policy

	pairs  []*Breakdown
	byPair map[model.Placement]*Breakdown
}

// Compute builds a breakdown for every (item, cache) pair, in item then
// cache order.
func Compute(
	p Policy,
	caches model.CacheInfo,
	items []model.Item,
	lat index.Latency,
	dem index.Demand,
) (*Table, error) {
	t := &Table{
		Policy: p,
		pairs:  make([]*Breakdown, 0, pairHint(len(items), caches.Count)),
		byPair: make(map[model.Placement]*Breakdown, pairHint(len(items), caches.Count)),
	}

	for _, it := range items {
		demand, ok := dem[it.ID]
		if !ok {
			return nil, fmt.Errorf("gain: item %d missing from demand index: %w", it.ID, model.ErrMalformedReference)
		}
		for c := 0; c < caches.Count; c++ {
			b := &Breakdown{Item: it.ID, Cache: c, Size: it.Size}
			for ep, count := range demand {
				if count == 0 {
					continue
				}
				cacheLat, ok := lat.Reaches(c, ep)
				if !ok {
					continue
				}
				origin, ok := lat.ToOrigin[ep]
				if !ok {
					return nil, fmt.Errorf("gain: endpoint %d has no origin latency: %w", ep, model.ErrMalformedReference)
				}
				if b.Gains == nil {
					b.Gains = make(map[int]int64, len(demand))
				}
				b.Gains[ep] = int64(origin-cacheLat) * int64(count)
				b.Audience += int64(count)
			}
			b.Rescore(p)
			t.pairs = append(t.pairs, b)
			t.byPair[model.Placement{ItemID: it.ID, CacheID: c}] = b
		}
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.pairs) }

func (t *Table) Get(itemID, cacheID int) (*Breakdown, bool) {
	b, ok := t.byPair[model.Placement{ItemID: itemID, CacheID: cacheID}]
	return b, ok
}

// Pairs returns the breakdowns in insertion order (item, then cache).
func (t *Table) Pairs() []*Breakdown {
	return t.pairs
}

// Sorted returns a copy of the breakdowns ordered by Less.
func (t *Table) Sorted() []*Breakdown {
	out := make([]*Breakdown, len(t.pairs))
	copy(out, t.pairs)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}
