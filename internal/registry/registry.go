package registry

import (
	"context"
	"time"

	"github.com/rollcall/rollcall/internal/roster"
)

// Outcome is the user-facing result of recording a check-in. Both values
// are successful results; duplicates are idempotent, not errors.
type Outcome int

const (
	// Recorded means this call inserted the first check-in for the pair.
	Recorded Outcome = iota
	// AlreadyRecorded means the pair was checked in before this call.
	AlreadyRecorded
)

// String returns the message rendered to the participant.
func (o Outcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case AlreadyRecorded:
		return "already recorded"
	default:
		return "unknown"
	}
}

// Registry is the record keeper for activity checks. It owns both stores:
// the relational index and the per-event roster artifacts. All operations
// are safe for concurrent use.
type Registry interface {
	// CreateEvent inserts a new event owned by owner and writes its
	// header-only roster artifact. The relational insert and the artifact
	// write are one logical transaction: a failure on either side leaves
	// the event absent from the index.
	CreateEvent(ctx context.Context, owner int64) (int64, error)

	// RecordCheckin records a participant's check-in exactly once per
	// (event, participant) pair. The relational insert is the sole arbiter
	// of "first time"; the roster line is appended only after the insert
	// confirmed a new row. A check-in against an unknown event fails with
	// an EVENT_NOT_FOUND error.
	RecordCheckin(ctx context.Context, eventID, participantID int64, displayName string, at time.Time) (Outcome, error)

	// GetExportPath returns the roster artifact path for the event,
	// authorizing the requester against the event owner. Absent events
	// fail with EVENT_NOT_FOUND; non-owners fail with FORBIDDEN and the
	// attempt is audited. The artifact's existence is verified before the
	// path is returned.
	GetExportPath(ctx context.Context, eventID, requester int64) (string, error)

	// EventIDs returns all event ids known to the index, ascending.
	EventIDs(ctx context.Context) ([]int64, error)

	// CheckinEntries returns an event's check-ins in arrival order, in
	// roster form. Used to rebuild a lost or malformed artifact.
	CheckinEntries(ctx context.Context, eventID int64) ([]roster.Entry, error)

	// Close closes the registry database connections.
	Close() error
}
