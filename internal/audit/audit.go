// Package audit records rejected export-access attempts. The true owner of
// an event is written here and to the process log, never into responses.
package audit

import (
	"log"
	"sync"
	"time"
)

// Reason classifies why an export request was denied.
type Reason string

const (
	ReasonNotFound  Reason = "not_found"
	ReasonForbidden Reason = "forbidden"
)

// Denial is one rejected export attempt.
type Denial struct {
	EventID   int64
	Requester int64
	Owner     int64 // zero when the event does not exist
	Reason    Reason
	At        time.Time
}

// Log keeps a bounded in-memory tail of denials and mirrors each entry to
// the process log. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	tail    []Denial
	maxTail int
}

// NewLog creates an audit log keeping at most maxTail recent denials.
func NewLog(maxTail int) *Log {
	if maxTail <= 0 {
		maxTail = 256
	}
	return &Log{maxTail: maxTail}
}

// NotFound records a request for an event id with no matching record.
func (l *Log) NotFound(eventID, requester int64) {
	log.Printf("audit: requester %d tried to access non-existing event %d", requester, eventID)
	l.record(Denial{EventID: eventID, Requester: requester, Reason: ReasonNotFound, At: time.Now()})
}

// Forbidden records a request by a principal who is not the event owner.
func (l *Log) Forbidden(eventID, requester, owner int64) {
	log.Printf("audit: requester %d tried to access event %d (owner: %d)", requester, eventID, owner)
	l.record(Denial{EventID: eventID, Requester: requester, Owner: owner, Reason: ReasonForbidden, At: time.Now()})
}

func (l *Log) record(d Denial) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tail = append(l.tail, d)
	if len(l.tail) > l.maxTail {
		l.tail = l.tail[len(l.tail)-l.maxTail:]
	}
}

// Tail returns a copy of the recent denials, oldest first.
func (l *Log) Tail() []Denial {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Denial, len(l.tail))
	copy(out, l.tail)
	return out
}
