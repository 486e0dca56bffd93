package domain

import "errors"

var (
	// ErrAssignmentNotFound is returned when the referenced assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrQuestionnaireNotFound indicates the questionnaire could not be loaded.
	ErrQuestionnaireNotFound = errors.New("questionnaire not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAttemptNotFound is returned when the referenced attempt does not exist.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAccessDenied is returned when the caller does not own the assignment.
	ErrAccessDenied = errors.New("access denied for this assessment")
	// ErrAlreadySubmitted is returned when finalize is called on a submitted assignment.
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	// ErrInvalidTransition is returned for any other disallowed status change.
	ErrInvalidTransition = errors.New("invalid assignment status transition")
	// ErrAlreadyAssigned signals a duplicate assignment of the same questionnaire.
	ErrAlreadyAssigned = errors.New("questionnaire already assigned to client")
)
