package strategy

import (
	"context"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
	"github.com/mohammed-shakir/cache-placement/internal/placement/packer"
)

func init() {
	Register(Dummy, func() Strategy { return dummy{} })
	Register(Spreading, func() Strategy { return spreading{} })
	Register(Filling, func() Strategy { return filling{} })
}

// places nothing; every cache comes back empty
type dummy struct{}

func (dummy) Name() string { return Dummy }

func (dummy) Place(_ context.Context, in model.Input, _ Options) (model.Assignment, Stats, error) {
	return packer.NewSet(in.Caches).Assignment(), Stats{}, nil
}

// round-robin over caches in item-id order, one attempt per item
type spreading struct{}

func (spreading) Name() string { return Spreading }

func (spreading) Place(_ context.Context, in model.Input, _ Options) (model.Assignment, Stats, error) {
	set := packer.NewSet(in.Caches)
	var st Stats
	if len(set) == 0 {
		return set.Assignment(), st, nil
	}

	cur := 0
	for _, it := range in.Items {
		st.record(set[cur].TryAdd(it))
		cur = (cur + 1) % len(set)
	}
	return set.Assignment(), st, nil
}

// first-fit: each item goes to the lowest cache id that accepts it
type filling struct{}

func (filling) Name() string { return Filling }

func (filling) Place(_ context.Context, in model.Input, _ Options) (model.Assignment, Stats, error) {
	set := packer.NewSet(in.Caches)
	var st Stats
	for _, it := range in.Items {
		for _, c := range set {
			ok := c.TryAdd(it)
			st.record(ok)
			if ok {
				break
			}
		}
	}
	return set.Assignment(), st, nil
}
