// Package cache stores per-file scan findings between runs.
package cache

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/JNZader/shapescan/internal/matcher"
)

// Cache stores the findings of one file. Stored reports carry no source
// text; callers re-attach it on load.
type Cache interface {
	// Get retrieves cached findings.
	Get(key string) ([]matcher.RuleMatchReport, bool, error)

	// Set stores findings.
	Set(key string, reports []matcher.RuleMatchReport) error

	// Clear removes all cached entries.
	Clear() error

	// Stats returns usage counters.
	Stats() Stats

	// Close releases cache resources.
	Close() error
}

// Stats contains cache counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// HitRate returns hits over lookups, or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ComputeKey derives the key for one file from the rule set fingerprint,
// the grammar used and the file content.
func ComputeKey(fingerprint uint64, cxx bool, content string) string {
	h := xxhash.New()
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[:8], fingerprint)
	if cxx {
		buf[8] = 1
	}
	_, _ = h.Write(buf[:])
	_, _ = h.WriteString(content)
	return strconv.FormatUint(h.Sum64(), 16)
}

// strip returns owned copies of reports without source text.
func strip(reports []matcher.RuleMatchReport) []matcher.RuleMatchReport {
	out := make([]matcher.RuleMatchReport, len(reports))
	for i, r := range reports {
		out[i] = r.Clone()
		out[i].Source = ""
	}
	return out
}

func clone(reports []matcher.RuleMatchReport) []matcher.RuleMatchReport {
	out := make([]matcher.RuleMatchReport, len(reports))
	for i, r := range reports {
		out[i] = r.Clone()
	}
	return out
}
