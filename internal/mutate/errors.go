package mutate

import (
	"errors"
	"fmt"

	"projects-factory/internal/model"
)

var (
	ErrInProgress           = errors.New("already in progress")
	ErrConfirmationRequired = errors.New("confirmation required")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// PreconditionError rejects an action before any state change or remote call.
type PreconditionError struct {
	Kind   Kind
	Reason string
}

func (e PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

type InProgressError struct {
	Kind Kind
	Key  model.Key
}

func (e InProgressError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Key.Name, e.Kind, ErrInProgress)
}

func (e InProgressError) Is(target error) bool { return target == ErrInProgress }
