package registry

import (
	"context"
	"sync"
	"testing"
	"time"
)

// N concurrent check-ins for the same (event, participant) pair must all
// succeed, with exactly one Recorded and the rest AlreadyRecorded, and the
// artifact must contain exactly one line for the participant.
func TestRecordCheckin_ConcurrentUniqueness(t *testing.T) {
	reg, rosters, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.CreateEvent(ctx, 1)
	if err != nil {
		t.Fatalf("create event failed: %v", err)
	}

	const callers = 16
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	outcomes := make([]Outcome, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = reg.RecordCheckin(ctx, id, 777, "racer", at)
		}(i)
	}
	wg.Wait()

	recorded := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if outcomes[i] == Recorded {
			recorded++
		}
	}
	if recorded != 1 {
		t.Errorf("winner count: got %d Recorded, want exactly 1", recorded)
	}

	entries, err := rosters.ReadEntries(id)
	if err != nil {
		t.Fatalf("read entries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("artifact line count: got %d, want 1", len(entries))
	}
}

// Concurrent check-ins by distinct participants must all be recorded once,
// one artifact line each.
func TestRecordCheckin_ConcurrentDistinctParticipants(t *testing.T) {
	reg, rosters, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := reg.CreateEvent(ctx, 1)
	if err != nil {
		t.Fatalf("create event failed: %v", err)
	}

	const participants = 32
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make([]error, participants)
	for i := 0; i < participants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.RecordCheckin(ctx, id, int64(1000+i), "p", at)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("participant %d failed: %v", i, err)
		}
	}

	entries, err := rosters.ReadEntries(id)
	if err != nil {
		t.Fatalf("read entries failed: %v", err)
	}
	if len(entries) != participants {
		t.Errorf("artifact line count: got %d, want %d", len(entries), participants)
	}
	seen := make(map[int64]bool)
	for _, e := range entries {
		if seen[e.ParticipantID] {
			t.Errorf("participant %d appears twice", e.ParticipantID)
		}
		seen[e.ParticipantID] = true
	}
}

// Concurrent event creation must hand out distinct ids, each with a
// header-only artifact.
func TestCreateEvent_Concurrent(t *testing.T) {
	reg, rosters, _ := newTestRegistry(t)
	ctx := context.Background()

	const creators = 8
	ids := make([]int64, creators)
	errs := make([]error, creators)
	var wg sync.WaitGroup
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = reg.CreateEvent(ctx, int64(i))
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for i := 0; i < creators; i++ {
		if errs[i] != nil {
			t.Fatalf("creator %d failed: %v", i, errs[i])
		}
		if seen[ids[i]] {
			t.Fatalf("duplicate event id %d", ids[i])
		}
		seen[ids[i]] = true

		exists, err := rosters.Exists(ids[i])
		if err != nil || !exists {
			t.Errorf("artifact for event %d missing (exists=%v, err=%v)", ids[i], exists, err)
		}
	}
}
