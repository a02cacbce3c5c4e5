package entity

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrDealNotFound  = errors.New("deal not found")
	ErrPriceNotFound = errors.New("price entry not found")
	ErrVideoNotFound = errors.New("video not found")
)

var (
	ErrValidation      = errors.New("validation error")
	ErrUnresolved      = errors.New("reference not resolved")
	ErrDuplicateDate   = errors.New("duplicate start date")
	ErrPersistence     = errors.New("persistence error")
	ErrTranscode       = errors.New("transcode error")
	ErrVersionConflict = errors.New("deal was modified since it was read")
)

var (
	ErrInvalidVideoTransition = errors.New("invalid video status transition")
)

// ValidationError reports a missing or malformed field in a row or request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ResolutionError reports a token that could not be mapped to a reference.
// Raw is the token exactly as the caller supplied it.
type ResolutionError struct {
	Kind string
	Raw  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Raw)
}

func (e *ResolutionError) Unwrap() error { return ErrUnresolved }

// DuplicateDateError carries the existing entry that owns the start date.
type DuplicateDateError struct {
	ExistingID primitive.ObjectID
	StartDate  time.Time
	Price      float64
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("a price for %s already exists (id %s, price %.2f)",
		DayKey(e.StartDate), e.ExistingID.Hex(), e.Price)
}

func (e *DuplicateDateError) Unwrap() error { return ErrDuplicateDate }

// PersistenceError wraps a failed write of the deal document.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist deal (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// TranscodeError wraps a failure in one stage of the media pipeline.
type TranscodeError struct {
	Stage string
	Err   error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s failed: %v", e.Stage, e.Err)
}

func (e *TranscodeError) Unwrap() []error { return []error{ErrTranscode, e.Err} }
