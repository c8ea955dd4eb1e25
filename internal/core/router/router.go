// Package router holds the HTTP handlers of the placement service.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/cache-placement/internal/core/config"
	"github.com/mohammed-shakir/cache-placement/internal/core/observability"
	"github.com/mohammed-shakir/cache-placement/internal/output"
	"github.com/mohammed-shakir/cache-placement/internal/placement/gain"
	"github.com/mohammed-shakir/cache-placement/internal/placement/strategy"
	"github.com/mohammed-shakir/cache-placement/internal/solver"
)

// Solver is the part of solver.Solver the handlers need.
type Solver interface {
	Solve(ctx context.Context, req solver.Request) (solver.Result, error)
}

type SolveResponse struct {
	RunKey   string           `json:"run_key"`
	Input    string           `json:"input,omitempty"`
	Strategy string           `json:"strategy"`
	Policy   string           `json:"policy"`
	Caches   map[string][]int `json:"caches"`
	Placed   int              `json:"placed"`
	Rejected int              `json:"rejected"`
	Saved    int64            `json:"saved"`
	Score    int64            `json:"score"`
	Cached   bool             `json:"cached"`
	Millis   int64            `json:"duration_ms"`
}

// HandleSolve reads a problem from the request body and answers with the
// assignment, as the submission text format or JSON.
func HandleSolve(logger *slog.Logger, cfg config.Config, s Solver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/solve", sw.code, time.Since(start).Seconds())
		}()

		req, asJSON, err := ParseSolveRequest(r, cfg.MaxInputBytes)
		if err != nil {
			code := http.StatusBadRequest
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				code = http.StatusRequestEntityTooLarge
			}
			http.Error(sw, err.Error(), code)
			return
		}

		ctx := r.Context()
		if cfg.SolveTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.SolveTimeout)
			defer cancel()
		}

		res, err := s.Solve(ctx, req)
		switch {
		case err == nil:
		case errors.Is(err, solver.ErrBadRequest):
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, context.DeadlineExceeded):
			http.Error(sw, "solve timed out", http.StatusGatewayTimeout)
			return
		default:
			logger.ErrorContext(r.Context(), "solve", "err", err)
			http.Error(sw, "internal server error", http.StatusInternalServerError)
			return
		}

		sw.Header().Set("X-Run-Key", res.RunKey)
		if asJSON {
			writeJSON(sw, toResponse(res))
			return
		}
		sw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := output.Write(sw, res.Assignment); err != nil {
			logger.WarnContext(r.Context(), "write solve response", "err", err)
		}
	}
}

// ParseSolveRequest validates query parameters and reads at most maxBytes
// of body. The second result reports whether JSON was requested.
func ParseSolveRequest(r *http.Request, maxBytes int64) (solver.Request, bool, error) {
	q := r.URL.Query()

	name := strings.TrimSpace(q.Get("strategy"))
	if name != "" {
		if _, err := strategy.New(name); err != nil {
			return solver.Request{}, false, err
		}
	}
	pol := strings.TrimSpace(q.Get("policy"))
	if pol != "" {
		if _, err := gain.ParsePolicy(pol); err != nil {
			return solver.Request{}, false, err
		}
	}

	var asJSON bool
	switch f := strings.ToLower(strings.TrimSpace(q.Get("format"))); f {
	case "json":
		asJSON = true
	case "", "text":
		asJSON = f == "" && strings.Contains(r.Header.Get("Accept"), "application/json")
	default:
		return solver.Request{}, false, fmt.Errorf("unsupported format %q (want text or json)", f)
	}

	if r.Body == nil {
		return solver.Request{}, false, errors.New("empty request body")
	}
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(nil, r.Body, maxBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return solver.Request{}, false, fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return solver.Request{}, false, errors.New("empty request body")
	}

	return solver.Request{
		Name:     strings.TrimSpace(q.Get("name")),
		Raw:      raw,
		Strategy: name,
		Policy:   pol,
	}, asJSON, nil
}

// HandleStrategies lists registered strategies and scoring policies.
func HandleStrategies() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		writeJSON(sw, map[string][]string{
			"strategies": strategy.Names(),
			"policies":   {gain.PureGain.String(), gain.GainOverCost.String(), gain.GainOverAudience.String()},
		})
		observability.ObserveHTTP(r.Method, "/strategies", sw.code, time.Since(start).Seconds())
	}
}

func toResponse(res solver.Result) SolveResponse {
	caches := make(map[string][]int, len(res.Assignment))
	for _, cid := range res.Assignment.CacheIDs() {
		if items := res.Assignment[cid]; len(items) > 0 {
			caches[fmt.Sprint(cid)] = items
		}
	}
	return SolveResponse{
		RunKey:   res.RunKey,
		Input:    res.Input,
		Strategy: res.Strategy,
		Policy:   res.Policy,
		Caches:   caches,
		Placed:   res.Stats.Placed,
		Rejected: res.Stats.Rejected,
		Saved:    res.Eval.Saved,
		Score:    res.Eval.Score,
		Cached:   res.Cached,
		Millis:   res.Duration.Milliseconds(),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
