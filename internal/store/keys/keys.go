// Package keys builds the Redis key layout for published assignments.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "placement"

// RunKey identifies one solve: the same input under the same strategy and
// policy always maps to the same key.
func RunKey(input []byte, strategy, policy string) string {
	return fmt.Sprintf("%s:%s:%s:%016x", prefix,
		sanitize(strings.ToLower(strings.TrimSpace(strategy))),
		sanitize(strings.ToLower(strings.TrimSpace(policy))),
		Digest(input, strategy, policy))
}

// Digest hashes the raw input together with the run parameters.
func Digest(input []byte, strategy, policy string) uint64 {
	d := xxhash.New()
	_, _ = d.Write(input)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strings.ToLower(strings.TrimSpace(strategy)))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strings.ToLower(strings.TrimSpace(policy)))
	return d.Sum64()
}

func CacheKey(runKey string, cacheID int) string {
	return fmt.Sprintf("%s:cache:%d", runKey, cacheID)
}

func SummaryKey(runKey string) string {
	return runKey + ":summary"
}

// LatestKey points at the run key most recently published for an input name.
func LatestKey(input string) string {
	return fmt.Sprintf("%s:latest:%s", prefix, sanitize(strings.TrimSpace(input)))
}

func sanitize(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
