// Package output renders an assignment in the submission format: the number
// of caches used, then one line per non-empty cache.
package output

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
)

// Write emits caches in ascending id order with their items ascending.
// Empty caches are omitted.
func Write(w io.Writer, a model.Assignment) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d\n", a.Used()); err != nil {
		return fmt.Errorf("write cache count: %w", err)
	}
	for _, cacheID := range a.CacheIDs() {
		items := a[cacheID]
		if len(items) == 0 {
			continue
		}
		sorted := slices.Clone(items)
		slices.Sort(sorted)

		var b strings.Builder
		b.WriteString(strconv.Itoa(cacheID))
		for _, id := range sorted {
			b.WriteByte(' ')
			b.WriteString(strconv.Itoa(id))
		}
		b.WriteByte('\n')
		if _, err := bw.WriteString(b.String()); err != nil {
			return fmt.Errorf("write cache %d: %w", cacheID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func Format(a model.Assignment) string {
	var b strings.Builder
	_ = Write(&b, a)
	return b.String()
}
