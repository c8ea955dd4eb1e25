// Package parser reads the line-oriented problem format into a model.Input.
//
// Layout:
//
//	V E R C X            items, endpoints, requests, caches, cache capacity
//	s0 s1 ... sV-1       item sizes
//	Ld K                 per endpoint: origin latency, number of cache links
//	c Lc                 K lines: cache id, latency
//	v e n                R lines: item, endpoint, request count
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
)

var ErrSyntax = errors.New("syntax error")

const (
	maxLineBytes = 16 << 20
	// upper bound for any capacity hint taken from the header
	maxPrealloc = 1 << 16
)

// Limits bounds what a header may announce. Zero fields take the defaults.
type Limits struct {
	// caches are allocated up front, so their count is capped explicitly
	MaxCaches int
	// items x caches, the size of the gain table
	MaxPairs int
}

var DefaultLimits = Limits{MaxCaches: 10_000, MaxPairs: 1 << 23}

func (lim Limits) withDefaults() Limits {
	if lim.MaxCaches <= 0 {
		lim.MaxCaches = DefaultLimits.MaxCaches
	}
	if lim.MaxPairs <= 0 {
		lim.MaxPairs = DefaultLimits.MaxPairs
	}
	return lim
}

type lines struct {
	sc   *bufio.Scanner
	line int
}

func (l *lines) next() ([]int, error) {
	for l.sc.Scan() {
		l.line++
		raw := strings.TrimSpace(l.sc.Text())
		if raw == "" {
			continue
		}
		fields := strings.Fields(raw)
		out := make([]int, len(fields))
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: field %d %q: %w", l.line, i+1, f, ErrSyntax)
			}
			out[i] = n
		}
		return out, nil
	}
	if err := l.sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", l.line+1, err)
	}
	return nil, fmt.Errorf("line %d: unexpected end of input: %w", l.line+1, ErrSyntax)
}

func (l *lines) want(n int, what string) ([]int, error) {
	vals, err := l.next()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if len(vals) != n {
		return nil, fmt.Errorf("%s: line %d: want %d values, got %d: %w", what, l.line, n, len(vals), ErrSyntax)
	}
	return vals, nil
}

// Parse reads one problem under DefaultLimits. The origin latency of each
// endpoint is stored under model.OriginID in its latency table.
func Parse(r io.Reader) (model.Input, error) {
	return ParseWithLimits(r, DefaultLimits)
}

// ParseWithLimits is Parse with explicit header bounds. Counts the data does
// not back up fail with ErrSyntax when the input runs out; nothing is
// allocated from a count before its records are read.
func ParseWithLimits(r io.Reader, lim Limits) (model.Input, error) {
	lim = lim.withDefaults()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	l := &lines{sc: sc}

	header, err := l.want(5, "header")
	if err != nil {
		return model.Input{}, err
	}
	for i, v := range header {
		if v < 0 {
			return model.Input{}, fmt.Errorf("header: value %d is %d: %w", i+1, v, model.ErrInvalidValue)
		}
	}
	nItems, nEndpoints, nRequests, nCaches := header[0], header[1], header[2], header[3]
	if nCaches > lim.MaxCaches {
		return model.Input{}, fmt.Errorf("header: %d caches exceeds limit %d: %w", nCaches, lim.MaxCaches, model.ErrInvalidValue)
	}
	if nCaches > 0 && nItems > lim.MaxPairs/nCaches {
		return model.Input{}, fmt.Errorf("header: %d items x %d caches exceeds limit %d pairs: %w",
			nItems, nCaches, lim.MaxPairs, model.ErrInvalidValue)
	}
	in := model.Input{Caches: model.CacheInfo{Count: header[3], Capacity: header[4]}}

	if nItems > 0 {
		sizes, err := l.want(nItems, "item sizes")
		if err != nil {
			return model.Input{}, err
		}
		in.Items = make([]model.Item, nItems)
		for id, s := range sizes {
			in.Items[id] = model.Item{ID: id, Size: s}
		}
	}

	in.Endpoints = make([]model.Endpoint, 0, min(nEndpoints, maxPrealloc))
	for id := 0; id < nEndpoints; id++ {
		ep, err := parseEndpoint(l, id, nCaches)
		if err != nil {
			return model.Input{}, err
		}
		in.Endpoints = append(in.Endpoints, ep)
	}

	in.Requests = make([]model.Request, 0, min(nRequests, maxPrealloc))
	for i := 0; i < nRequests; i++ {
		v, err := l.want(3, fmt.Sprintf("request %d", i))
		if err != nil {
			return model.Input{}, err
		}
		in.Requests = append(in.Requests, model.Request{ItemID: v[0], EndpointID: v[1], Count: v[2]})
	}

	if _, err := l.next(); err == nil {
		return model.Input{}, fmt.Errorf("line %d: trailing data after %d requests: %w", l.line, nRequests, ErrSyntax)
	}

	if err := in.Validate(); err != nil {
		return model.Input{}, err
	}
	return in, nil
}

func parseEndpoint(l *lines, id, nCaches int) (model.Endpoint, error) {
	what := fmt.Sprintf("endpoint %d", id)
	head, err := l.want(2, what)
	if err != nil {
		return model.Endpoint{}, err
	}
	origin, links := head[0], head[1]
	if links < 0 || links > nCaches {
		return model.Endpoint{}, fmt.Errorf("%s: %d cache links with %d caches: %w", what, links, nCaches, model.ErrInvalidValue)
	}

	ep := model.Endpoint{ID: id, Latencies: make(map[int]int, min(links, maxPrealloc)+1)}
	ep.Latencies[model.OriginID] = origin
	for k := 0; k < links; k++ {
		v, err := l.want(2, what+" cache link")
		if err != nil {
			return model.Endpoint{}, err
		}
		if v[0] == model.OriginID {
			return model.Endpoint{}, fmt.Errorf("%s: cache id %d is reserved: %w", what, v[0], model.ErrMalformedReference)
		}
		ep.Latencies[v[0]] = v[1]
	}
	return ep, nil
}

func ParseString(s string) (model.Input, error) {
	return Parse(strings.NewReader(s))
}
