// Package strategy implements the placement policies that fill caches from
// items, either naively or from the gain model's score table.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
	"github.com/mohammed-shakir/cache-placement/internal/placement/gain"
	"github.com/mohammed-shakir/cache-placement/internal/placement/index"
)

const (
	Dummy        = "dummy"
	Spreading    = "spreading"
	Filling      = "filling"
	Descent      = "descent"
	BestVideo    = "best-video"
	DescentAmend = "descent-amend"
)

// how many pairs the greedy loops process between context checks
const ctxCheckEvery = 1024

type Options struct {
	Policy gain.Policy
	// skip pairs scoring <= 0 instead of spending capacity on them
	SkipNonPositive bool
	// caps descent-amend attempts; 0 means bounded only by the pair count
	MaxIterations int
}

type Stats struct {
	Attempts int
	Placed   int
	Rejected int
	// descent-amend only: pair scores revised after a commit
	Rescored int
}

func (s *Stats) record(ok bool) {
	s.Attempts++
	if ok {
		s.Placed++
	} else {
		s.Rejected++
	}
}

// Strategy fills an owned packer set and returns the resulting assignment.
// The input is expected to have passed model.Input.Validate.
type Strategy interface {
	Name() string
	Place(ctx context.Context, in model.Input, opts Options) (model.Assignment, Stats, error)
}

var ErrUnknown = errors.New("unknown strategy")

type Factory func() Strategy

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

func New(name string) (Strategy, error) {
	if f, ok := reg[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknown, name, strings.Join(Names(), ", "))
}

// Names lists the registered strategies in ascending order.
func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// scoreTable builds both indexes and the gain table for in.
func scoreTable(in model.Input, p gain.Policy) (*gain.Table, error) {
	dem, err := index.BuildDemand(in.Items, in.Endpoints, in.Requests)
	if err != nil {
		return nil, fmt.Errorf("demand index: %w", err)
	}
	lat, err := index.BuildLatency(in.Caches, in.Endpoints)
	if err != nil {
		return nil, fmt.Errorf("latency index: %w", err)
	}
	tbl, err := gain.Compute(p, in.Caches, in.Items, lat, dem)
	if err != nil {
		return nil, fmt.Errorf("gain table: %w", err)
	}
	return tbl, nil
}
