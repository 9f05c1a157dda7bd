// Package services implements the match lifecycle: the daily sweep that
// pairs participants, the message gate for the chat window, the vote state
// machine, and the reconciler that moves lagging matches forward.
//
// This file holds the error taxonomy shared by every service. Handlers map
// these onto transport status codes; the services never return transport
// details themselves.
package services

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	// ErrInvalidInput covers malformed identifiers, dates and display names.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSweepClosed is returned when a sweep targets a date whose chat window
	// has already closed.
	ErrSweepClosed = fmt.Errorf("%w: chat window for that date has closed", ErrInvalidInput)

	// ErrContentInvalid is the parent of every message content rejection.
	ErrContentInvalid = errors.New("content invalid")

	// ErrEmptyContent is returned when content is empty after trimming.
	ErrEmptyContent = fmt.Errorf("%w: empty", ErrContentInvalid)

	// ErrContentTooLong is returned when content exceeds the configured rune limit.
	ErrContentTooLong = fmt.Errorf("%w: too long", ErrContentInvalid)
)

// Lookup and authorization errors.
var (
	// ErrMatchNotFound indicates the match id does not exist.
	ErrMatchNotFound = errors.New("match not found")

	// ErrNotParticipant is returned when the caller holds neither slot of the match.
	ErrNotParticipant = errors.New("not a participant of this match")

	// ErrNotEnrolled is returned when a participant record does not exist.
	ErrNotEnrolled = errors.New("participant not enrolled")
)

// State machine guard violations. These are expected outcomes, not faults.
var (
	// ErrPhaseLocked is returned for a message sent outside the CHAT phase.
	ErrPhaseLocked = errors.New("match is not accepting messages")

	// ErrChatExpired is returned when a message arrives after the chat window
	// closed. The match has been moved to VOTE; the caller should re-fetch.
	ErrChatExpired = errors.New("chat window has expired")

	// ErrTooEarly is returned for a vote while the chat window is still open.
	ErrTooEarly = errors.New("voting is not open yet")

	// ErrAlreadyResolved is returned for a vote on a resolved match.
	ErrAlreadyResolved = errors.New("match already resolved")

	// ErrDuplicateVote is returned when the voter already has a recorded vote.
	ErrDuplicateVote = errors.New("vote already recorded")

	// ErrSweepInProgress is returned when another sweep holds the lock for the date.
	ErrSweepInProgress = errors.New("sweep already running for this date")
)

// ErrStorage marks failures of the backing store. Match it with errors.Is;
// the concrete value is a *StorageError carrying the failed operation.
var ErrStorage = errors.New("storage failure")

// StorageError wraps a store failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// storageErr wraps err unless it is nil or already one of the service errors.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isServiceError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isServiceError(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrContentInvalid, ErrMatchNotFound, ErrNotParticipant,
		ErrNotEnrolled, ErrPhaseLocked, ErrChatExpired, ErrTooEarly,
		ErrAlreadyResolved, ErrDuplicateVote, ErrSweepInProgress, ErrStorage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
