package strategy

import (
	"context"
	"fmt"
	"sort"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
	"github.com/mohammed-shakir/cache-placement/internal/placement/index"
	"github.com/mohammed-shakir/cache-placement/internal/placement/packer"
)

func init() {
	Register(Descent, func() Strategy { return descent{} })
	Register(BestVideo, func() Strategy { return bestVideo{} })
}

// One-shot greedy: every (item, cache) pair is attempted once, in descending
// score order. Scores are never revised.
type descent struct{}

func (descent) Name() string { return Descent }

func (descent) Place(ctx context.Context, in model.Input, opts Options) (model.Assignment, Stats, error) {
	var st Stats
	tbl, err := scoreTable(in, opts.Policy)
	if err != nil {
		return nil, st, err
	}

	set := packer.NewSet(in.Caches)
	for i, b := range tbl.Sorted() {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, st, fmt.Errorf("descent interrupted: %w", err)
			}
		}
		// sorted descending, nothing after this scores higher
		if opts.SkipNonPositive && b.Score <= 0 {
			break
		}
		st.record(set[b.Cache].TryAdd(in.Items[b.Item]))
	}
	return set.Assignment(), st, nil
}

// Ranks items by total demand, ignoring latency, and offers each item to
// every cache that serves at least one endpoint requesting it.
type bestVideo struct{}

func (bestVideo) Name() string { return BestVideo }

func (bestVideo) Place(ctx context.Context, in model.Input, _ Options) (model.Assignment, Stats, error) {
	var st Stats
	dem, err := index.BuildDemand(in.Items, in.Endpoints, in.Requests)
	if err != nil {
		return nil, st, fmt.Errorf("demand index: %w", err)
	}
	lat, err := index.BuildLatency(in.Caches, in.Endpoints)
	if err != nil {
		return nil, st, fmt.Errorf("latency index: %w", err)
	}

	type ranked struct {
		item  model.Item
		total int64
	}
	order := make([]ranked, 0, len(in.Items))
	for _, it := range in.Items {
		order = append(order, ranked{item: it, total: dem.Total(it.ID)})
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].total != order[j].total {
			return order[i].total > order[j].total
		}
		return order[i].item.ID < order[j].item.ID
	})

	set := packer.NewSet(in.Caches)
	for i, r := range order {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, st, fmt.Errorf("best-video interrupted: %w", err)
			}
		}
		for cacheID, c := range set {
			if !servesDemand(lat, dem[r.item.ID], cacheID) {
				continue
			}
			st.record(c.TryAdd(r.item))
		}
	}
	return set.Assignment(), st, nil
}

func servesDemand(lat index.Latency, demand map[int]int, cacheID int) bool {
	for ep, n := range demand {
		if n == 0 {
			continue
		}
		if _, ok := lat.Reaches(cacheID, ep); ok {
			return true
		}
	}
	return false
}
