package scheduler

import (
	"log/slog"
	"sort"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

// Habit placement retry parameters.
const (
	// DefaultJitter is the fixed step added when a habit candidate sits too
	// close to a sibling occurrence.
	DefaultJitter = 15 * time.Minute
	// DefaultMaxAttempts bounds jitter retries before accepting the best
	// available slot.
	DefaultMaxAttempts = 10
)

// Scheduler assigns start/end times to plan item occurrences, honoring
// window bounds, busy intervals, and habit spacing.
type Scheduler struct {
	buffer      time.Duration
	jitter      time.Duration
	maxAttempts int
	loc         *time.Location
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBuffer sets the spacing buffer between blocks and past busy intervals.
func WithBuffer(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.buffer = d
		}
	}
}

// WithLocation sets the local time zone used for window bounds.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a scheduler with default buffer, jitter, and retry budget.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		buffer:      DefaultBuffer,
		jitter:      DefaultJitter,
		maxAttempts: DefaultMaxAttempts,
		loc:         time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the scheduler's local time zone.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Schedule places every item occurrence on the day containing now. Focus
// items are processed sequentially in input order; habit items are spread
// across their window. The returned blocks are sorted by start time.
func (s *Scheduler) Schedule(now time.Time, items []models.PlanItem, busy IntervalSet) []models.ScheduledBlock {
	now = now.In(s.loc)
	var blocks []models.ScheduledBlock
	cursor := now

	for _, item := range items {
		windowStart, windowEnd := WindowBounds(item.Window, now, s.loc)
		switch item.Kind {
		case models.ItemKindHabit:
			placed := s.placeHabit(now, cursor, windowStart, windowEnd, item, busy, blocks)
			blocks = append(blocks, placed...)
		default:
			block := s.placeFocus(cursor, windowStart, item, busy)
			blocks = append(blocks, block)
			cursor = block.End.Add(s.buffer)
		}
	}

	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Start.Before(blocks[j].Start) })
	slog.Debug("Scheduler.Schedule: placement complete", "items", len(items), "blocks", len(blocks))
	return blocks
}

// placeFocus places a single contiguous block at the earliest busy-free
// slot at or after max(cursor, window start). Items are kept even when
// placement spills past the nominal window end; a later pass may clamp,
// but the default policy never drops or moves them to another day.
func (s *Scheduler) placeFocus(cursor, windowStart time.Time, item models.PlanItem, busy IntervalSet) models.ScheduledBlock {
	start := cursor
	if windowStart.After(start) {
		start = windowStart
	}
	duration := time.Duration(item.Minutes) * time.Minute
	start = s.pushPastBusy(start, duration, busy)
	return blockFor(item, start, duration)
}

// placeHabit spreads the item's occurrences across the window horizon with
// nominal spacing max(minGap, span/occurrences). Candidates too close to an
// already placed occurrence of the same habit are retried with a fixed
// jitter; after the retry budget the best available slot is accepted, so a
// habit is never unschedulable, only suboptimal.
func (s *Scheduler) placeHabit(now, cursor, windowStart, windowEnd time.Time, item models.PlanItem, busy IntervalSet, existing []models.ScheduledBlock) []models.ScheduledBlock {
	horizonStart := now
	if cursor.After(horizonStart) {
		horizonStart = cursor
	}
	if windowStart.After(horizonStart) {
		horizonStart = windowStart
	}

	occurrences := item.Occurrences
	if occurrences < 1 {
		occurrences = 1
	}
	duration := time.Duration(item.Minutes) * time.Minute
	minGap := time.Duration(item.MinGapMinutes) * time.Minute

	span := windowEnd.Sub(horizonStart)
	if span < 0 {
		span = 0
	}
	step := span / time.Duration(occurrences)
	if minGap > step {
		step = minGap
	}

	var placed []models.ScheduledBlock
	t := horizonStart
	for i := 0; i < occurrences; i++ {
		candidate := s.pushPastBusy(t, duration, busy)
		for attempt := 0; attempt < s.maxAttempts && s.tooCloseToSibling(candidate, duration, minGap, item.Title, existing, placed); attempt++ {
			candidate = s.pushPastBusy(candidate.Add(s.jitter), duration, busy)
		}
		if s.tooCloseToSibling(candidate, duration, minGap, item.Title, existing, placed) {
			slog.Debug("Scheduler.placeHabit: retry budget exhausted, accepting best-effort slot",
				"title", item.Title, "occurrence", i+1, "start", candidate)
		}
		placed = append(placed, blockFor(item, candidate, duration))
		t = t.Add(step)
	}
	return placed
}

// pushPastBusy returns the first start at or after the desired start whose
// [start, start+duration) range overlaps no busy interval. Each restart
// strictly advances the start, so the scan terminates.
func (s *Scheduler) pushPastBusy(start time.Time, duration time.Duration, busy IntervalSet) time.Time {
	for {
		hit, overlaps := busy.FirstOverlap(start, start.Add(duration))
		if !overlaps {
			return start
		}
		start = hit.End.Add(s.buffer)
	}
}

// tooCloseToSibling reports whether the candidate lies within minGap of an
// already scheduled block carrying the same habit title.
func (s *Scheduler) tooCloseToSibling(start time.Time, duration, minGap time.Duration, title string, groups ...[]models.ScheduledBlock) bool {
	if minGap <= 0 {
		return false
	}
	end := start.Add(duration)
	for _, blocks := range groups {
		for _, b := range blocks {
			if b.Title != title {
				continue
			}
			if gapBetween(start, end, b.Start, b.End) < minGap {
				return true
			}
		}
	}
	return false
}

// gapBetween returns the distance between two half-open ranges, zero when
// they overlap.
func gapBetween(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	if aStart.After(bEnd) || aStart.Equal(bEnd) {
		return aStart.Sub(bEnd)
	}
	if bStart.After(aEnd) || bStart.Equal(aEnd) {
		return bStart.Sub(aEnd)
	}
	return 0
}

func blockFor(item models.PlanItem, start time.Time, duration time.Duration) models.ScheduledBlock {
	return models.ScheduledBlock{
		ItemID:  item.ID,
		Title:   item.Title,
		Details: item.Details,
		GoalIDs: item.GoalIDs,
		Kind:    item.Kind,
		Start:   start,
		End:     start.Add(duration),
	}
}
