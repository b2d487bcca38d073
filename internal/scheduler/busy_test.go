package scheduler

import (
	"testing"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

func TestBusyBuilderExpandsByBuffer(t *testing.T) {
	b := NewBusyBuilder(5*time.Minute, time.UTC)
	ref := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	events := []models.RawEvent{
		{ID: "e1", Title: "Standup",
			Start: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
			End:   time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)},
	}
	set := b.Build(events, ref)
	if set.Len() != 1 {
		t.Fatalf("expected 1 interval, got %d", set.Len())
	}
	iv := set.Intervals()[0]
	if !iv.Start.Equal(time.Date(2025, 6, 2, 9, 25, 0, 0, time.UTC)) {
		t.Errorf("start not expanded: %v", iv.Start)
	}
	if !iv.End.Equal(time.Date(2025, 6, 2, 10, 5, 0, 0, time.UTC)) {
		t.Errorf("end not expanded: %v", iv.End)
	}
}

func TestBusyBuilderSkipsSelfOwned(t *testing.T) {
	b := NewBusyBuilder(5*time.Minute, time.UTC)
	ref := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	events := []models.RawEvent{
		{ID: "tagged", Title: "Deep work",
			Private: map[string]string{models.OwnershipTagKey: "1"},
			Start:   time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
			End:     time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)},
		{ID: "prefixed", Title: models.OwnedTitlePrefix + " Focus block",
			Start: time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)},
		{ID: "real", Title: "Dentist",
			Start: time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)},
	}
	set := b.Build(events, ref)
	if set.Len() != 1 {
		t.Fatalf("self-owned events not skipped: %d intervals", set.Len())
	}
	if !set.Intervals()[0].Start.Equal(time.Date(2025, 6, 2, 14, 55, 0, 0, time.UTC)) {
		t.Errorf("kept wrong event: %v", set.Intervals()[0])
	}
}

func TestBusyBuilderAllDayBlocksWholeDay(t *testing.T) {
	b := NewBusyBuilder(5*time.Minute, time.UTC)
	ref := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	events := []models.RawEvent{
		{ID: "vacation", Title: "PTO", AllDay: true, Date: "2025-06-02"},
	}
	set := b.Build(events, ref)
	if set.Len() != 1 {
		t.Fatalf("expected 1 interval, got %d", set.Len())
	}
	iv := set.Intervals()[0]
	dayStart, dayEnd := DayBounds(ref, time.UTC)
	if !iv.Start.Equal(dayStart) || !iv.End.Equal(dayEnd) {
		t.Errorf("all-day interval = %v, want [%v, %v)", iv, dayStart, dayEnd)
	}
}

func TestBusyBuilderDropsDegenerateEvents(t *testing.T) {
	b := NewBusyBuilder(5*time.Minute, time.UTC)
	ref := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	events := []models.RawEvent{
		{ID: "zero",
			Start: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
	}
	if set := b.Build(events, ref); set.Len() != 0 {
		t.Errorf("zero-length event should be dropped, got %d intervals", set.Len())
	}
}

func TestBusyBuilderEmptyEvents(t *testing.T) {
	b := NewBusyBuilder(0, nil)
	if set := b.Build(nil, time.Now()); set.Len() != 0 {
		t.Errorf("expected empty set, got %d", set.Len())
	}
}
