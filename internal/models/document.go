package models

import (
	"errors"
	"fmt"
	"time"
)

// DocumentStatus is the processing state of one uploaded document.
type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// ErrInvalidTransition is returned when a status write would move a record backward
// or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists the allowed next states. The empty status stands for a record that does not exist yet.
var transitions = map[DocumentStatus][]DocumentStatus{
	"":               {StatusUploading, StatusProcessing, StatusFailed},
	StatusUploading:  {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known states.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether a record in state s may move to next.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition returns an error wrapping ErrInvalidTransition if from -> to is not allowed.
func CheckTransition(from, to DocumentStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !from.CanTransitionTo(to) {
		if from == "" {
			from = "<absent>"
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// StatusRecord is the per-document status entry the dashboard watches.
// It lives at {namespace}/{tenantId}/users/{userId}/documents/{documentKey}.
type StatusRecord struct {
	Key         string         `firestore:"-" json:"key"`
	Status      DocumentStatus `firestore:"status" json:"status"`
	FileName    string         `firestore:"fileName,omitempty" json:"fileName,omitempty"`
	Error       string         `firestore:"error,omitempty" json:"error,omitempty"`
	Strategy    string         `firestore:"strategy,omitempty" json:"strategy,omitempty"`
	PageCount   int            `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	CreatedAt   time.Time      `firestore:"createdAt,omitempty" json:"createdAt"`
	CompletedAt time.Time      `firestore:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// StatusUpdate is one forward move of a StatusRecord.
type StatusUpdate struct {
	Status DocumentStatus
	// FileName is only written when the record is created.
	FileName  string
	Error     string
	Strategy  string
	PageCount int
}

// Apply advances rec by upd, stamping times with now. exists reports whether rec was already stored.
// The record is left untouched when the transition is rejected.
func (upd StatusUpdate) Apply(rec *StatusRecord, exists bool, now time.Time) error {
	from := DocumentStatus("")
	if exists {
		from = rec.Status
	}
	if err := CheckTransition(from, upd.Status); err != nil {
		return err
	}
	if !exists {
		rec.FileName = upd.FileName
		if rec.FileName == "" {
			rec.FileName = rec.Key
		}
		rec.CreatedAt = now
	}
	rec.Status = upd.Status
	if upd.Status == StatusFailed {
		rec.Error = upd.Error
	}
	if upd.Strategy != "" {
		rec.Strategy = upd.Strategy
	}
	if upd.PageCount > 0 {
		rec.PageCount = upd.PageCount
	}
	if upd.Status.IsTerminal() {
		rec.CompletedAt = now
	}
	return nil
}
