package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown, expired or deleted.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a participant id is not part of the session.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuestionNotFound indicates a question id could not be resolved.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidPhase is returned when an operation is not allowed in the current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current session phase")
	// ErrSessionFinished is returned for question-advancing turns on a finished session.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrStoreEmpty means the question store holds no questions at all.
	ErrStoreEmpty = errors.New("question store is empty")
	// ErrQuestionsExhausted means every question matching the session constraints was used.
	ErrQuestionsExhausted = errors.New("no unused questions left for this session")
	// ErrInvalidRating is returned for ratings outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrInvalidDifficulty is returned for unknown difficulty names.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrUnknownPatchField is returned when a question patch names a field that cannot be edited.
	ErrUnknownPatchField = errors.New("unknown question patch field")
	// ErrMalformedOutput marks collaborator output that could not be parsed.
	ErrMalformedOutput = errors.New("malformed collaborator output")
	// ErrInvalidArgument covers request validation failures.
	ErrInvalidArgument = errors.New("invalid argument")
)

// CollaboratorError wraps a transport or timeout failure of an external collaborator.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// WrapCollaborator tags err as a failure of collaborator. Nil stays nil and
// errors that are already tagged pass through unchanged.
func WrapCollaborator(collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}
