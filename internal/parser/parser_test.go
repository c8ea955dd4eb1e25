package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
)

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

func TestParse_Example(t *testing.T) {
	in, err := ParseString(example)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if in.Caches != (model.CacheInfo{Count: 3, Capacity: 100}) {
		t.Fatalf("caches=%+v", in.Caches)
	}
	if len(in.Items) != 5 || in.Items[4] != (model.Item{ID: 4, Size: 110}) {
		t.Fatalf("items=%+v", in.Items)
	}
	if len(in.Endpoints) != 2 {
		t.Fatalf("endpoints=%+v", in.Endpoints)
	}
	ep0 := in.Endpoints[0].Latencies
	if ep0[model.OriginID] != 1000 || ep0[0] != 100 || ep0[2] != 200 || ep0[1] != 300 || len(ep0) != 4 {
		t.Fatalf("endpoint 0 latencies=%v", ep0)
	}
	ep1 := in.Endpoints[1].Latencies
	if len(ep1) != 1 || ep1[model.OriginID] != 500 {
		t.Fatalf("endpoint 1 latencies=%v", ep1)
	}
	if len(in.Requests) != 4 || in.Requests[2] != (model.Request{ItemID: 4, EndpointID: 0, Count: 500}) {
		t.Fatalf("requests=%+v", in.Requests)
	}
}

func TestParse_CRLFAndTrailingBlankLines(t *testing.T) {
	src := strings.ReplaceAll(example, "\n", "\r\n") + "\r\n\r\n"
	if _, err := ParseString(src); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"empty", "", ErrSyntax},
		{"short header", "1 2 3\n", ErrSyntax},
		{"not a number", "1 0 0 1 x\n5\n", ErrSyntax},
		{"size count mismatch", "2 0 0 1 10\n5\n", ErrSyntax},
		{"missing endpoint", "1 1 0 1 10\n5\n", ErrSyntax},
		{"missing request", "1 1 1 1 10\n5\n100 0\n", ErrSyntax},
		{"trailing data", "1 0 0 1 10\n5\n0 0 1\n", ErrSyntax},
		{"negative header", "1 0 0 -1 10\n5\n", model.ErrInvalidValue},
		{"negative size", "1 0 0 1 10\n-5\n", model.ErrInvalidValue},
		{"reserved cache id", "1 1 0 1 10\n5\n100 1\n-1 3\n", model.ErrMalformedReference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseString(tc.src)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParse_ZeroItemsAndCaches(t *testing.T) {
	in, err := ParseString("0 1 0 0 100\n200 0\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(in.Items) != 0 || in.Caches.Count != 0 || len(in.Endpoints) != 1 {
		t.Fatalf("got %+v", in)
	}
}

func TestParse_HeaderCountsNotBackedByData(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"huge items", "9000000000000000000 0 0 0 10\n5\n", ErrSyntax},
		{"huge items with caches", "9000000000000000000 0 0 1 10\n5\n", model.ErrInvalidValue},
		{"huge endpoints", "0 9000000000000000000 0 1 10\n", ErrSyntax},
		{"huge requests", "0 0 9000000000000000000 1 10\n", ErrSyntax},
		{"huge caches", "0 0 0 100000000000 10\n", model.ErrInvalidValue},
		{"overflowing count", "0 0 99999999999999999999 1 10\n", ErrSyntax},
		{"more endpoints than present", "1 3 0 1 10\n5\n100 0\n", ErrSyntax},
		{"more requests than present", "1 1 4 1 10\n5\n100 0\n0 0 1\n", ErrSyntax},
		{"huge cache links", "1 1 0 1 10\n5\n100 9000000000000000000\n", model.ErrInvalidValue},
		{"more links than caches", "1 1 0 1 10\n5\n100 2\n0 10\n0 20\n", model.ErrInvalidValue},
		{"items x caches over limit", "5000000 0 0 10000 10\n", model.ErrInvalidValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("panicked: %v", r)
				}
			}()
			_, err := ParseString(tc.src)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseWithLimits_CustomCacheLimit(t *testing.T) {
	src := "1 0 0 3 10\n5\n"
	if _, err := ParseWithLimits(strings.NewReader(src), Limits{MaxCaches: 2}); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("want ErrInvalidValue, got %v", err)
	}
	// zero fields fall back to the defaults
	if _, err := ParseWithLimits(strings.NewReader(src), Limits{}); err != nil {
		t.Fatalf("default limits: %v", err)
	}
}
