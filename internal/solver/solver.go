// Package solver runs one placement end to end: parse, place, validate,
// evaluate, then hand the result to the optional sink and event publisher.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
	"github.com/mohammed-shakir/cache-placement/internal/core/observability"
	"github.com/mohammed-shakir/cache-placement/internal/events"
	"github.com/mohammed-shakir/cache-placement/internal/logger"
	"github.com/mohammed-shakir/cache-placement/internal/parser"
	"github.com/mohammed-shakir/cache-placement/internal/placement/evaluate"
	"github.com/mohammed-shakir/cache-placement/internal/placement/gain"
	"github.com/mohammed-shakir/cache-placement/internal/placement/strategy"
	"github.com/mohammed-shakir/cache-placement/internal/store/keys"
	"github.com/mohammed-shakir/cache-placement/internal/store/redisstore"
)

// ErrBadRequest marks failures caused by the caller's input or parameters.
var ErrBadRequest = errors.New("bad request")

type Sink interface {
	PutAssignment(ctx context.Context, pub redisstore.Publication, ttl time.Duration) error
}

type Publisher interface {
	Publish(ev events.Event) bool
}

type Config struct {
	Strategy        string
	Policy          string
	SkipNonPositive bool
	MaxIterations   int
	MemoSize        int
	SinkTTL         time.Duration
	SinkTimeout     time.Duration
	// header bounds; zero fields use parser.DefaultLimits
	Limits parser.Limits
}

type Option func(*Solver)

func WithSink(s Sink) Option { return func(sv *Solver) { sv.sink = s } }

func WithPublisher(p Publisher) Option { return func(sv *Solver) { sv.pub = p } }

type Solver struct {
	cfg  Config
	log  *slog.Logger
	memo *lru.Cache[uint64, Result]
	sink Sink
	pub  Publisher
}

type Request struct {
	Name string
	Raw  []byte
	// empty values fall back to the solver defaults
	Strategy string
	Policy   string
}

type Result struct {
	RunKey     string
	Input      string
	Strategy   string
	Policy     string
	Assignment model.Assignment
	Stats      strategy.Stats
	Eval       evaluate.Result
	Duration   time.Duration
	// true when served from the memo; Assignment is shared and must not be modified
	Cached bool
}

func New(cfg Config, log *slog.Logger, opts ...Option) (*Solver, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = strategy.Descent
	}
	if _, err := strategy.New(cfg.Strategy); err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	if _, err := gain.ParsePolicy(cfg.Policy); err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 2 * time.Second
	}

	s := &Solver{cfg: cfg, log: log}
	if cfg.MemoSize > 0 {
		m, err := lru.New[uint64, Result](cfg.MemoSize)
		if err != nil {
			return nil, fmt.Errorf("solver: memo: %w", err)
		}
		s.memo = m
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Solver) Solve(ctx context.Context, req Request) (Result, error) {
	name := req.Strategy
	if name == "" {
		name = s.cfg.Strategy
	}
	st, err := strategy.New(name)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	polName := req.Policy
	if polName == "" {
		polName = s.cfg.Policy
	}
	pol, err := gain.ParsePolicy(polName)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	digest := keys.Digest(req.Raw, st.Name(), pol.String())
	runKey := keys.RunKey(req.Raw, st.Name(), pol.String())

	ctx = logger.WithRunID(ctx, runKey)
	ctx = logger.WithStrategy(ctx, st.Name())
	ctx = logger.WithInput(ctx, req.Name)

	if s.memo != nil {
		if r, ok := s.memo.Get(digest); ok {
			observability.IncMemo(true)
			r.Input = req.Name
			r.Cached = true
			s.log.DebugContext(ctx, "memo hit", "score", r.Eval.Score)
			return r, nil
		}
		observability.IncMemo(false)
	}

	start := time.Now()
	res, err := s.solve(ctx, st, pol, req)
	elapsed := time.Since(start)
	observability.ObserveRun(st.Name(), pol.String(), err, elapsed.Seconds())
	if err != nil {
		s.log.WarnContext(ctx, "solve failed", "policy", pol.String(), "err", err)
		return Result{}, err
	}
	res.RunKey = runKey
	res.Duration = elapsed

	s.log.InfoContext(ctx, "solved",
		"policy", res.Policy,
		"placed", res.Stats.Placed,
		"rejected", res.Stats.Rejected,
		"caches_used", res.Assignment.Used(),
		"saved", res.Eval.Saved,
		"score", res.Eval.Score,
		"duration", elapsed,
	)

	if s.memo != nil {
		s.memo.Add(digest, res)
	}
	s.publish(ctx, res)
	return res, nil
}

func (s *Solver) solve(ctx context.Context, st strategy.Strategy, pol gain.Policy, req Request) (Result, error) {
	in, err := parser.ParseWithLimits(bytes.NewReader(req.Raw), s.cfg.Limits)
	if err != nil {
		return Result{}, fmt.Errorf("%w: parse %s: %w", ErrBadRequest, req.Name, err)
	}

	opts := strategy.Options{
		Policy:          pol,
		SkipNonPositive: s.cfg.SkipNonPositive,
		MaxIterations:   s.cfg.MaxIterations,
	}
	a, stats, err := st.Place(ctx, in, opts)
	if err != nil {
		if errors.Is(err, model.ErrMalformedReference) || errors.Is(err, model.ErrInvalidValue) {
			err = fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		return Result{}, fmt.Errorf("place %s: %w", st.Name(), err)
	}
	if err := evaluate.Validate(in, a); err != nil {
		return Result{}, fmt.Errorf("strategy %s produced invalid assignment: %w", st.Name(), err)
	}
	ev, err := evaluate.Evaluate(in, a)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate: %w", err)
	}

	observability.AddAttempts(st.Name(), stats.Placed, stats.Rejected)
	observability.SetScore(st.Name(), ev.Score)
	for cid := range in.Caches.Count {
		used := 0
		for _, id := range a[cid] {
			used += in.Items[id].Size
		}
		observability.ObserveCacheFill(used, in.Caches.Capacity)
	}

	return Result{
		Input:      req.Name,
		Strategy:   st.Name(),
		Policy:     pol.String(),
		Assignment: a,
		Stats:      stats,
		Eval:       ev,
	}, nil
}

type summary struct {
	Input    string `json:"input,omitempty"`
	Strategy string `json:"strategy"`
	Policy   string `json:"policy"`
	Placed   int    `json:"placed"`
	Saved    int64  `json:"saved"`
	Score    int64  `json:"score"`
}

// publish is best effort: failures are logged and counted, never returned.
func (s *Solver) publish(ctx context.Context, res Result) {
	if s.sink != nil {
		b, err := json.Marshal(summary{
			Input:    res.Input,
			Strategy: res.Strategy,
			Policy:   res.Policy,
			Placed:   res.Stats.Placed,
			Saved:    res.Eval.Saved,
			Score:    res.Eval.Score,
		})
		if err != nil {
			s.log.WarnContext(ctx, "summary marshal", "err", err)
		}
		sctx, cancel := context.WithTimeout(ctx, s.cfg.SinkTimeout)
		err = s.sink.PutAssignment(sctx, redisstore.Publication{
			RunKey:     res.RunKey,
			Input:      res.Input,
			Assignment: res.Assignment,
			Summary:    b,
		}, s.cfg.SinkTTL)
		cancel()
		if err != nil {
			s.log.WarnContext(ctx, "assignment sink", "err", err)
		}
	}

	if s.pub != nil {
		ok := s.pub.Publish(events.Event{
			Type:     events.TypeCompleted,
			RunKey:   res.RunKey,
			Input:    res.Input,
			Strategy: res.Strategy,
			Policy:   res.Policy,
			Caches:   res.Assignment.Used(),
			Placed:   res.Stats.Placed,
			Rejected: res.Stats.Rejected,
			Saved:    res.Eval.Saved,
			Score:    res.Eval.Score,
		})
		if !ok {
			s.log.WarnContext(ctx, "placement event dropped")
		}
	}
}
