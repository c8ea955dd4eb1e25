package solver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
	"github.com/mohammed-shakir/cache-placement/internal/events"
	"github.com/mohammed-shakir/cache-placement/internal/logger"
	"github.com/mohammed-shakir/cache-placement/internal/parser"
	"github.com/mohammed-shakir/cache-placement/internal/store/redisstore"
)

// the worked example from the original problem statement
const example = `5 2 4 3 100
50 50 80 30 110
1000 3
0 100
2 200
1 300
500 0
3 0 1500
0 1 1000
4 0 500
1 0 1000
`

type fakeSink struct {
	mu   sync.Mutex
	pubs []redisstore.Publication
	ttl  time.Duration
	err  error
}

func (f *fakeSink) PutAssignment(_ context.Context, pub redisstore.Publication, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, pub)
	f.ttl = ttl
	return f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(ev events.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

func newSolver(t *testing.T, cfg Config, opts ...Option) (*Solver, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	zl := logger.Build(logger.Config{Level: "info"}, &buf)
	s, err := New(cfg, logger.NewSlog(&zl), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, &buf
}

func TestSolve_DescentWorkedExample(t *testing.T) {
	sink := &fakeSink{}
	pub := &fakePublisher{}
	s, logs := newSolver(t, Config{SinkTTL: time.Hour}, WithSink(sink), WithPublisher(pub))

	res, err := s.Solve(context.Background(), Request{Name: "example.in", Raw: []byte(example)})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	want := model.Assignment{0: {1, 3}, 1: {1, 3}, 2: {1, 3}}
	for cid, items := range want {
		if !reflect.DeepEqual(res.Assignment[cid], items) {
			t.Fatalf("cache %d: got %v want %v", cid, res.Assignment[cid], items)
		}
	}
	if res.Strategy != "descent" || res.Policy != "pure" {
		t.Fatalf("defaults not applied: %s/%s", res.Strategy, res.Policy)
	}
	if res.Stats.Placed != 6 {
		t.Fatalf("placed=%d want 6", res.Stats.Placed)
	}
	// both items served from cache 0: (1500*900 + 1000*900) * 1000 / 4000
	if res.Eval.Score != 562500 {
		t.Fatalf("score=%d want 562500", res.Eval.Score)
	}
	if !strings.HasPrefix(res.RunKey, "placement:descent:pure:") {
		t.Fatalf("run key %q", res.RunKey)
	}

	if len(sink.pubs) != 1 || sink.pubs[0].RunKey != res.RunKey || sink.ttl != time.Hour {
		t.Fatalf("sink calls %+v ttl=%v", sink.pubs, sink.ttl)
	}
	if !strings.Contains(string(sink.pubs[0].Summary), `"score":562500`) {
		t.Fatalf("summary %s", sink.pubs[0].Summary)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.TypeCompleted || pub.events[0].Caches != 3 {
		t.Fatalf("events %+v", pub.events)
	}

	line := logs.String()
	if !strings.Contains(line, `"msg":"solved"`) || !strings.Contains(line, `"run_id":"`+res.RunKey+`"`) {
		t.Fatalf("missing solved log line: %s", line)
	}
}

func TestSolve_MemoServesRepeatRequests(t *testing.T) {
	sink := &fakeSink{}
	s, _ := newSolver(t, Config{MemoSize: 4}, WithSink(sink))

	ctx := context.Background()
	first, err := s.Solve(ctx, Request{Name: "a.in", Raw: []byte(example)})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	second, err := s.Solve(ctx, Request{Name: "b.in", Raw: []byte(example)})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if first.Cached || !second.Cached {
		t.Fatalf("cached flags: first=%v second=%v", first.Cached, second.Cached)
	}
	if second.Input != "b.in" || second.RunKey != first.RunKey {
		t.Fatalf("memo result %+v", second)
	}
	if len(sink.pubs) != 1 {
		t.Fatalf("memo hit must not republish, got %d", len(sink.pubs))
	}

	// a different policy is a different run
	third, err := s.Solve(ctx, Request{Raw: []byte(example), Policy: "cost"})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if third.Cached || third.RunKey == first.RunKey {
		t.Fatalf("policy change must miss the memo")
	}
}

func TestSolve_BadRequests(t *testing.T) {
	s, _ := newSolver(t, Config{})
	ctx := context.Background()

	cases := []Request{
		{Raw: []byte("not a problem")},
		{Raw: []byte(example), Strategy: "annealing"},
		{Raw: []byte(example), Policy: "bogus"},
		// request references item 9
		{Raw: []byte("1 1 1 1 10\n5\n100 1\n0 10\n9 0 3\n")},
	}
	for i, req := range cases {
		if _, err := s.Solve(ctx, req); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("case %d: want ErrBadRequest, got %v", i, err)
		}
	}
}

func TestSolve_OversizedHeadersAreBadRequests(t *testing.T) {
	s, _ := newSolver(t, Config{Limits: parser.Limits{MaxCaches: 100}})
	ctx := context.Background()

	cases := map[string]string{
		"cache count":       "0 0 0 100000000000 10\n",
		"item count":        "9000000000000000000 0 0 1 10\n5\n",
		"endpoint count":    "0 9000000000000000000 0 1 10\n\n",
		"request count":     "0 0 9000000000000000000 1 10\n\n",
		"caches over limit": "0 0 0 101 10\n\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Solve(ctx, Request{Raw: []byte(raw), Strategy: "dummy"}); !errors.Is(err, ErrBadRequest) {
				t.Fatalf("want ErrBadRequest, got %v", err)
			}
		})
	}
}

func TestSolve_SinkFailureIsNotFatal(t *testing.T) {
	sink := &fakeSink{err: errors.New("connection refused")}
	s, logs := newSolver(t, Config{}, WithSink(sink))

	if _, err := s.Solve(context.Background(), Request{Raw: []byte(example)}); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !strings.Contains(logs.String(), "assignment sink") {
		t.Fatalf("expected sink warning in logs: %s", logs.String())
	}
}

func TestSolve_EveryStrategyProducesValidOutput(t *testing.T) {
	s, _ := newSolver(t, Config{})
	for _, name := range []string{"dummy", "spreading", "filling", "descent", "best-video", "descent-amend"} {
		res, err := s.Solve(context.Background(), Request{Raw: []byte(example), Strategy: name})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Strategy != name {
			t.Fatalf("strategy label %q want %q", res.Strategy, name)
		}
	}
}

func TestNew_RejectsUnknownDefaults(t *testing.T) {
	if _, err := New(Config{Strategy: "nope"}, nil); err == nil {
		t.Fatalf("expected error for unknown default strategy")
	}
	if _, err := New(Config{Policy: "nope"}, nil); err == nil {
		t.Fatalf("expected error for unknown default policy")
	}
}

func TestRunBatch_WritesOutputsAndContinuesOnFailure(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(filepath.Join(inDir, "example.in"), []byte(example), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "broken.in"), []byte("1 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}

	names, err := ListInputs(inDir)
	if err != nil {
		t.Fatalf("ListInputs: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"broken.in", "example.in"}) {
		t.Fatalf("names=%v", names)
	}

	s, _ := newSolver(t, Config{})
	results, err := s.RunBatch(context.Background(), inDir, outDir, names, Request{})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d", len(results))
	}
	if results[0].Err == nil {
		t.Fatalf("broken.in must fail")
	}
	if results[1].Err != nil {
		t.Fatalf("example.in: %v", results[1].Err)
	}

	got, err := os.ReadFile(filepath.Join(outDir, "example.out"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "3\n0 1 3\n1 1 3\n2 1 3\n" {
		t.Fatalf("output=%q", got)
	}
	if _, err := os.Stat(filepath.Join(outDir, "broken.out")); !os.IsNotExist(err) {
		t.Fatalf("failed input must not leave an output file")
	}
}

func TestRunBatch_StopsOnCancel(t *testing.T) {
	s, _ := newSolver(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RunBatch(ctx, t.TempDir(), t.TempDir(), []string{"x.in"}, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
