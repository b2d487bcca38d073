package scheduler

import (
	"log/slog"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

// DefaultBuffer is the safety margin applied around busy intervals and
// between placed blocks.
const DefaultBuffer = 5 * time.Minute

// BusyBuilder converts raw external calendar entries into a merged
// IntervalSet the scheduler must avoid.
type BusyBuilder struct {
	buffer time.Duration
	loc    *time.Location
}

// NewBusyBuilder creates a builder with the given buffer and location.
// A zero buffer uses DefaultBuffer; a nil location uses time.Local.
func NewBusyBuilder(buffer time.Duration, loc *time.Location) *BusyBuilder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if loc == nil {
		loc = time.Local
	}
	return &BusyBuilder{buffer: buffer, loc: loc}
}

// Build converts events for the local day containing ref into a merged
// busy set. Self-owned events are discarded, all-day events block the
// whole local day, and every remaining interval is expanded by the buffer
// on both ends before merging.
func (b *BusyBuilder) Build(events []models.RawEvent, ref time.Time) IntervalSet {
	var ivs []Interval
	skippedOwn := 0
	for _, ev := range events {
		if ev.OwnedBySelf() {
			skippedOwn++
			continue
		}
		if ev.AllDay {
			dayStart, dayEnd := DayBounds(ref, b.loc)
			ivs = append(ivs, Interval{Start: dayStart, End: dayEnd})
			continue
		}
		if !ev.End.After(ev.Start) {
			continue
		}
		ivs = append(ivs, Interval{
			Start: ev.Start.Add(-b.buffer),
			End:   ev.End.Add(b.buffer),
		})
	}
	set := NewIntervalSet(ivs)
	slog.Debug("BusyBuilder.Build: busy set built",
		"events", len(events), "self_owned", skippedOwn, "merged_intervals", set.Len())
	return set
}
