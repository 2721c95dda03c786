package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLockConflict signals that an enrolment model is held by another writer.
	ErrLockConflict = errors.New("enrolment model is locked by another writer")
)

// MissingICError is returned when a learner has no usable informed consent.
// The status tells the client whether consent is missing, rejected or outdated.
type MissingICError struct {
	LearnerID uuid.UUID
	Status    string
}

func (e *MissingICError) Error() string {
	return fmt.Sprintf("informed consent not valid for learner: %s", e.Status)
}

// MissingEnrolmentError carries the partial enrolment payload so the client
// can tell the learner which instruments still need enrolment.
type MissingEnrolmentError struct {
	LearnerID  uuid.UUID
	ActivityID uuid.UUID
	Detail     interface{}
}

func (e *MissingEnrolmentError) Error() string {
	return "missing enrolment for one or more required instruments"
}

// InstrumentCountError indicates a request/sample referenced unknown
// instruments. It is a contract violation and must not be requeued.
type InstrumentCountError struct {
	Requested int
	Found     int
}

func (e *InstrumentCountError) Error() string {
	return fmt.Sprintf("invalid instruments: requested %d, found %d", e.Requested, e.Found)
}
