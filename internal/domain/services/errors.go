// Package services contains domain business logic.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNothingRecognized means the completer answered but produced no usable event.
	ErrNothingRecognized = errors.New("could not identify any events")
	// ErrEmptyInput means the user submitted nothing to analyze.
	ErrEmptyInput = errors.New("enter at least one event name")
	// ErrReviewInProgress is returned when a second batch is started before the first is resolved.
	ErrReviewInProgress = errors.New("a review is already in progress")
	// ErrNoReview is returned when confirming or editing with no review open.
	ErrNoReview = errors.New("no review in progress")
	// ErrEventNotFound is returned when an id does not exist in the collection.
	ErrEventNotFound = errors.New("event not found")
	// ErrNothingToSync is returned by a manual sync while clean.
	ErrNothingToSync = errors.New("nothing to sync")
	// ErrSyncInProgress is returned when a write is already in flight.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// ValidationError rejects a single input record.
type ValidationError struct {
	Record  int    // 1-indexed record number, 0 if not tied to a record
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Record > 0 {
		return fmt.Sprintf("record %d: %s", e.Record, e.Message)
	}
	return e.Message
}

// CollaboratorError wraps a failure from an external service call.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
