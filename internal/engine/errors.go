package engine

import "fmt"

// NotFoundError indicates the referenced entity does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidStateError indicates the entity's current status forbids the
// requested operation.
type InvalidStateError struct {
	Kind   string
	ID     string
	Status string
	Op     string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %s; %s not allowed", e.Kind, e.ID, e.Status, e.Op)
}

// InvalidTransitionError indicates a status change not reachable from
// the current status.
type InvalidTransitionError struct {
	Kind string
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition %s -> %s", e.Kind, e.From, e.To)
}

// ValidationError indicates malformed input, caught before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// GenerationError indicates the document provider failed or timed out.
type GenerationError struct {
	Provider string
	Err      error
}

func (e GenerationError) Error() string {
	return fmt.Sprintf("sow generation via %s failed: %v", e.Provider, e.Err)
}

func (e GenerationError) Unwrap() error { return e.Err }

// ConflictError indicates a compare-and-set transition lost a race; the
// caller should re-read before retrying.
type ConflictError struct {
	Kind string
	ID   string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("concurrent update on %s %s", e.Kind, e.ID)
}
