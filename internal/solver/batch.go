package solver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mohammed-shakir/cache-placement/internal/output"
)

// DefaultInputs are the problem files solved when no directory listing is
// requested.
var DefaultInputs = []string{
	"kittens.in",
	"me_at_the_zoo.in",
	"trending_today.in",
	"videos_worth_spreading.in",
}

type BatchResult struct {
	Input  string
	Output string
	Result Result
	Err    error
}

// ListInputs returns the *.in files of dir in name order.
func ListInputs(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.in"))
	if err != nil {
		return nil, fmt.Errorf("list inputs in %s: %w", dir, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Base(m))
	}
	sort.Strings(out)
	return out, nil
}

// RunBatch solves each named file of inDir sequentially and writes
// <name>.out into outDir. A failing input is reported and the batch
// continues; the returned error is only for setup failures and
// cancellation.
func (s *Solver) RunBatch(ctx context.Context, inDir, outDir string, names []string, req Request) ([]BatchResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outDir, err)
	}

	results := make([]BatchResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("batch: %w", err)
		}
		br := BatchResult{
			Input:  name,
			Output: filepath.Join(outDir, strings.TrimSuffix(name, ".in")+".out"),
		}
		br.Result, br.Err = s.solveFile(ctx, filepath.Join(inDir, name), br.Output, name, req)
		if br.Err != nil {
			s.log.ErrorContext(ctx, "batch input failed", "input", name, "err", br.Err)
		}
		results = append(results, br)
	}
	return results, nil
}

func (s *Solver) solveFile(ctx context.Context, inPath, outPath, name string, req Request) (Result, error) {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", inPath, err)
	}
	req.Name = name
	req.Raw = raw
	res, err := s.Solve(ctx, req)
	if err != nil {
		return Result{}, err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("create %s: %w", outPath, err)
	}
	if err := output.Write(f, res.Assignment); err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("write %s: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("close %s: %w", outPath, err)
	}
	return res, nil
}
