package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskCard is the lifecycle-managed unit of work derived from a RawRecord,
// or created directly for internal requests.
type TaskCard struct {
	ID          uuid.UUID
	RawRecordID *uuid.UUID
	Status      CardStatus
	AssignedTo  *string
	Department  *string

	Title         string
	RequesterName *string
	ContactInfo   *string
	RequestType   *string
	Description   *string
	Priority      Priority

	// Classification and Suggestion are opaque annotations written by the
	// classification hook. They never affect status transitions.
	Classification *string
	Suggestion     *string

	// Metadata carries region/category/organization fields copied verbatim
	// from the external record.
	Metadata map[string]string

	// StartedAt is set exactly once, on first entry into IN_PROGRESS.
	StartedAt *time.Time
	// CompletedAt is set exactly once, on first entry into DONE or
	// AWAITING_CONFIRMATION.
	CompletedAt *time.Time
	ConfirmedAt *time.Time
	Deadline    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOverdue reports whether the card is past its deadline at the given time.
// Done cards are never overdue.
func (c *TaskCard) IsOverdue(now time.Time) bool {
	if c.Deadline == nil || c.Status == CardStatusDone {
		return false
	}
	return c.Deadline.Before(now)
}

// StatusUpdate holds the fields written by a status transition.
// Timestamp pointers are only written when non-nil, preserving the
// set-exactly-once invariant enforced by the lifecycle engine.
type StatusUpdate struct {
	Status      CardStatus
	AssignedTo  *string
	StartedAt   *time.Time
	CompletedAt *time.Time
	ConfirmedAt *time.Time
}

// CardUpdate holds the fields refreshed when an already-promoted record is
// re-mapped during a later sync pass.
type CardUpdate struct {
	Title         string
	RequesterName *string
	ContactInfo   *string
	RequestType   *string
	Description   *string
	Priority      Priority
	Deadline      *time.Time
	Metadata      map[string]string
}

// HistoryEntry is one immutable audit record of a single status transition.
// PreviousStatus is nil only for the creation entry.
type HistoryEntry struct {
	ID             uuid.UUID
	CardID         uuid.UUID
	PreviousStatus *CardStatus
	NewStatus      CardStatus
	// ActorID is nil for system-triggered transitions.
	ActorID   *string
	Comment   *string
	Metadata  map[string]string
	CreatedAt time.Time
}
