package domain

import "time"

// Status is the assignment lifecycle state.
type Status string

const (
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
)

// Start moves an ASSIGNED assignment to IN_PROGRESS and stamps StartedAt.
// Saving answers on an assignment that already started is a no-op here.
func (a *Assignment) Start(now time.Time) error {
	switch a.Status {
	case StatusAssigned:
		a.Status = StatusInProgress
		a.StartedAt = &now
		return nil
	case StatusInProgress:
		return nil
	case StatusSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrInvalidTransition
	}
}

// Submit finalizes the assignment exactly once, recording the deterministic
// outcome. SUBMITTED is terminal: score and resolved stage are write-once.
func (a *Assignment) Submit(now time.Time, score float64, resolvedStage string) error {
	switch a.Status {
	case StatusAssigned, StatusInProgress:
		if a.StartedAt == nil {
			a.StartedAt = &now
		}
		a.Status = StatusSubmitted
		a.SubmittedAt = &now
		a.Score = &score
		a.ResolvedStage = resolvedStage
		return nil
	case StatusSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrInvalidTransition
	}
}
