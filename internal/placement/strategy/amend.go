package strategy

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
	"github.com/mohammed-shakir/cache-placement/internal/placement/gain"
	"github.com/mohammed-shakir/cache-placement/internal/placement/packer"
)

func init() {
	Register(DescentAmend, func() Strategy { return descentAmend{} })
}

// Greedy with a live score table. After each committed placement of item v
// on cache c, every other candidate (v, c') loses, per shared endpoint, the
// gain (v, c) already captures there; the best remaining pair is then picked
// again.
type descentAmend struct{}

func (descentAmend) Name() string { return DescentAmend }

func (descentAmend) Place(ctx context.Context, in model.Input, opts Options) (model.Assignment, Stats, error) {
	var st Stats
	tbl, err := scoreTable(in, opts.Policy)
	if err != nil {
		return nil, st, err
	}

	set := packer.NewSet(in.Caches)
	q := newLiveQueue(tbl.Pairs())
	done := make(map[*gain.Breakdown]struct{}, tbl.Len())

	for q.Len() > 0 && !set.Full() {
		if opts.MaxIterations > 0 && st.Attempts >= opts.MaxIterations {
			break
		}
		if st.Attempts%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, st, fmt.Errorf("descent-amend interrupted: %w", err)
			}
		}

		b, ok := q.popBest()
		if !ok {
			break
		}
		done[b] = struct{}{}
		if opts.SkipNonPositive && b.Score <= 0 {
			continue
		}

		placed := set[b.Cache].TryAdd(in.Items[b.Item])
		st.record(placed)
		if !placed || len(b.Gains) == 0 {
			continue
		}

		for c := range set {
			if c == b.Cache {
				continue
			}
			other, ok := tbl.Get(b.Item, c)
			if !ok {
				continue
			}
			if _, finished := done[other]; finished {
				continue
			}
			if discount(other, b) {
				other.Rescore(opts.Policy)
				q.update(other)
				st.Rescored++
			}
		}
	}
	return set.Assignment(), st, nil
}

// discount lowers other's per-endpoint gains by what placed now captures on
// the endpoints both reach. Reports whether anything changed.
func discount(other, placed *gain.Breakdown) bool {
	changed := false
	for ep, old := range other.Gains {
		captured, shared := placed.Gains[ep]
		if !shared {
			continue
		}
		next := max(old-max(captured, 0), 0)
		if next != old {
			other.Gains[ep] = next
			changed = true
		}
	}
	return changed
}

type liveEntry struct {
	b       *gain.Breakdown
	version int
	// score at push time; b.Score moves under the heap
	score int64
}

// liveQueue is a max-heap over breakdowns in gain.Less order. Rescored
// pairs are pushed again; superseded entries are dropped when popped.
type liveQueue struct {
	entries  []liveEntry
	versions map[*gain.Breakdown]int
}

func newLiveQueue(pairs []*gain.Breakdown) *liveQueue {
	q := &liveQueue{
		entries:  make([]liveEntry, 0, len(pairs)),
		versions: make(map[*gain.Breakdown]int, len(pairs)),
	}
	for _, b := range pairs {
		q.entries = append(q.entries, liveEntry{b: b, score: b.Score})
		q.versions[b] = 0
	}
	heap.Init(q)
	return q
}

func (q *liveQueue) Len() int { return len(q.entries) }

func (q *liveQueue) Less(i, j int) bool {
	a, b := q.entries[i], q.entries[j]
	if a.score != b.score {
		return a.score > b.score
	}
	if a.b.Item != b.b.Item {
		return a.b.Item < b.b.Item
	}
	return a.b.Cache < b.b.Cache
}

func (q *liveQueue) Swap(i, j int) { q.entries[i], q.entries[j] = q.entries[j], q.entries[i] }

func (q *liveQueue) Push(x any) { q.entries = append(q.entries, x.(liveEntry)) }

func (q *liveQueue) Pop() any {
	n := len(q.entries)
	e := q.entries[n-1]
	q.entries = q.entries[:n-1]
	return e
}

// popBest returns the highest-ranked live breakdown and retires it.
func (q *liveQueue) popBest() (*gain.Breakdown, bool) {
	for q.Len() > 0 {
		e := heap.Pop(q).(liveEntry)
		v, live := q.versions[e.b]
		if !live || v != e.version {
			continue
		}
		delete(q.versions, e.b)
		return e.b, true
	}
	return nil, false
}

func (q *liveQueue) update(b *gain.Breakdown) {
	v, live := q.versions[b]
	if !live {
		return
	}
	v++
	q.versions[b] = v
	heap.Push(q, liveEntry{b: b, version: v, score: b.Score})
}
