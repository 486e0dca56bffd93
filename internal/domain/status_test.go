package domain

import (
	"testing"
	"time"
)

func TestStartTransitions(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	a := Assignment{Status: StatusAssigned}
	if err := a.Start(now); err != nil {
		t.Fatalf("start from ASSIGNED: %v", err)
	}
	if a.Status != StatusInProgress || a.StartedAt == nil || !a.StartedAt.Equal(now) {
		t.Fatalf("unexpected state %+v", a)
	}

	// Starting again is a no-op and keeps the original timestamp.
	later := now.Add(time.Hour)
	if err := a.Start(later); err != nil {
		t.Fatalf("start from IN_PROGRESS: %v", err)
	}
	if !a.StartedAt.Equal(now) {
		t.Fatalf("expected StartedAt unchanged, got %v", a.StartedAt)
	}

	a.Status = StatusSubmitted
	if err := a.Start(later); err != ErrAlreadySubmitted {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSubmitTransitions(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// Direct submit from ASSIGNED stamps StartedAt too.
	a := Assignment{Status: StatusAssigned}
	if err := a.Submit(now, 60, "Scale"); err != nil {
		t.Fatalf("submit from ASSIGNED: %v", err)
	}
	if a.Status != StatusSubmitted || a.StartedAt == nil || a.SubmittedAt == nil {
		t.Fatalf("unexpected state %+v", a)
	}
	if *a.Score != 60 || a.ResolvedStage != "Scale" {
		t.Fatalf("unexpected outcome %+v", a)
	}

	// SUBMITTED is terminal; the outcome is write-once.
	if err := a.Submit(now.Add(time.Hour), 99, "Evolution"); err != ErrAlreadySubmitted {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if *a.Score != 60 || a.ResolvedStage != "Scale" {
		t.Fatalf("outcome must be unchanged, got %+v", a)
	}

	b := Assignment{Status: Status("BOGUS")}
	if err := b.Submit(now, 0, ""); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestStageRuleContains(t *testing.T) {
	r := StageRule{MinScore: 25.000001, MaxScore: 50}
	cases := map[float64]bool{
		25.0:      false,
		25.000001: true, // closed lower bound
		40:        true,
		50:        true, // closed upper bound
		50.000001: false,
	}
	for score, want := range cases {
		if got := r.Contains(score); got != want {
			t.Fatalf("Contains(%v) = %v, want %v", score, got, want)
		}
	}
}
