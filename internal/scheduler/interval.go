// Package scheduler places plan items on a timeline without colliding
// with externally owned calendar commitments.
//
// All placement is deterministic: identical inputs (same now, same items,
// same busy set) produce an identical schedule.
package scheduler

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the interval overlaps [start, end).
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && iv.Start.Before(end)
}

// IntervalSet is an ordered, merged set of half-open intervals.
// The zero value is an empty set.
type IntervalSet struct {
	intervals []Interval
}

// NewIntervalSet builds a set from arbitrary intervals: empty and inverted
// ranges are dropped, the rest are sorted by start and merged. Merging uses
// an inclusive boundary: an interval starting exactly at the previous end
// joins the same span.
func NewIntervalSet(ivs []Interval) IntervalSet {
	cleaned := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.End.After(iv.Start) {
			cleaned = append(cleaned, iv)
		}
	}
	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].Start.Before(cleaned[j].Start) })

	var merged []Interval
	for _, iv := range cleaned {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return IntervalSet{intervals: merged}
}

// Intervals returns the merged intervals in start order.
func (s IntervalSet) Intervals() []Interval {
	return s.intervals
}

// Len returns the number of merged intervals.
func (s IntervalSet) Len() int {
	return len(s.intervals)
}

// FirstOverlap returns the first merged interval overlapping [start, end),
// scanning in order.
func (s IntervalSet) FirstOverlap(start, end time.Time) (Interval, bool) {
	for _, iv := range s.intervals {
		if iv.Overlaps(start, end) {
			return iv, true
		}
	}
	return Interval{}, false
}
