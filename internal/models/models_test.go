package models

import (
	"errors"
	"testing"
)

func TestCheckinSignalValidate(t *testing.T) {
	if err := (CheckinSignal{Energy: 3, Workload: 3}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (CheckinSignal{Energy: 0, Workload: 3}).Validate(); !errors.Is(err, ErrInvalidEnergy) {
		t.Errorf("expected ErrInvalidEnergy, got %v", err)
	}
	if err := (CheckinSignal{Energy: 3, Workload: 6}).Validate(); !errors.Is(err, ErrInvalidWorkload) {
		t.Errorf("expected ErrInvalidWorkload, got %v", err)
	}
}

func TestPlanCandidateRecomputeTotal(t *testing.T) {
	p := PlanCandidate{
		TotalMinutes: 999,
		Steps: []PlanStep{
			{Title: "a", Minutes: 10},
			{Title: "b", Minutes: 15},
		},
	}
	p.RecomputeTotal()
	if p.TotalMinutes != 25 {
		t.Errorf("total = %d, want 25", p.TotalMinutes)
	}

	var empty PlanCandidate
	empty.RecomputeTotal()
	if empty.TotalMinutes != 0 {
		t.Errorf("empty total = %d, want 0", empty.TotalMinutes)
	}
}

func TestPlanItemValidate(t *testing.T) {
	good := PlanItem{ID: "i1", Title: "t", Minutes: 10, GoalIDs: []string{"g"}, Kind: ItemKindFocus, Window: WindowAny, Occurrences: 1}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := good
	bad.Minutes = 0
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMinutes) {
		t.Errorf("expected ErrInvalidMinutes, got %v", err)
	}

	bad = good
	bad.GoalIDs = nil
	if err := bad.Validate(); !errors.Is(err, ErrMissingGoalIDs) {
		t.Errorf("expected ErrMissingGoalIDs, got %v", err)
	}

	bad = good
	bad.Window = "night"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}

	bad = good
	bad.Occurrences = 3
	if err := bad.Validate(); !errors.Is(err, ErrFocusOccurrences) {
		t.Errorf("focus with 3 occurrences should fail, got %v", err)
	}

	habit := good
	habit.Kind = ItemKindHabit
	habit.Occurrences = 3
	habit.MinGapMinutes = 60
	if err := habit.Validate(); err != nil {
		t.Errorf("habit with multiple occurrences should pass: %v", err)
	}
}

func TestRawEventOwnedBySelf(t *testing.T) {
	tagged := RawEvent{Private: map[string]string{OwnershipTagKey: "1"}}
	if !tagged.OwnedBySelf() {
		t.Error("tagged event not recognized")
	}
	prefixed := RawEvent{Title: OwnedTitlePrefix + " Deep work"}
	if !prefixed.OwnedBySelf() {
		t.Error("prefixed event not recognized")
	}
	foreign := RawEvent{Title: "Dentist", Private: map[string]string{"other": "1"}}
	if foreign.OwnedBySelf() {
		t.Error("foreign event misclassified")
	}
}

func TestRunAutopilotRequestValidate(t *testing.T) {
	good := RunAutopilotRequest{UserID: "u1", GoalID: "g1", Energy: 3, Workload: 3}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := good
	bad.UserID = "  "
	if err := bad.Validate(); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}

	bad = good
	bad.GoalID = ""
	if err := bad.Validate(); !errors.Is(err, ErrEmptyGoalID) {
		t.Errorf("expected ErrEmptyGoalID, got %v", err)
	}

	bad = good
	bad.StartInMinutes = 181
	if err := bad.Validate(); err == nil {
		t.Error("start_in_minutes above 180 should fail")
	}

	bad = good
	bad.Energy = 9
	if err := bad.Validate(); !errors.Is(err, ErrInvalidEnergy) {
		t.Errorf("expected ErrInvalidEnergy, got %v", err)
	}
}

func TestPlanDayRequestValidate(t *testing.T) {
	good := PlanDayRequest{UserID: "u1", GoalIDs: []string{"g1", "g2"}, Energy: 3, Workload: 3}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	bad := good
	bad.GoalIDs = nil
	if err := bad.Validate(); err == nil {
		t.Error("empty goal list should fail")
	}
}

func TestAPIResponseBuilder(t *testing.T) {
	resp := Success(map[string]string{"k": "v"})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("status = %s", resp.Status)
	}
	resp = Error("boom")
	if resp.Status != string(APIStatusError) || resp.Message != "boom" {
		t.Errorf("error response = %+v", resp)
	}
	resp = NewAPIResponseBuilder().WithStatus(APIStatusOK).WithMessage("hi").Build()
	if resp.Message != "hi" {
		t.Errorf("builder message = %q", resp.Message)
	}
}
