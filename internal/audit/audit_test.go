package audit

import (
	"sync"
	"testing"
)

func TestTailRecordsDenials(t *testing.T) {
	l := NewLog(10)

	l.NotFound(7, 99)
	l.Forbidden(7, 99, 42)

	tail := l.Tail()
	if len(tail) != 2 {
		t.Fatalf("expected 2 denials, got %d", len(tail))
	}

	if tail[0].Reason != ReasonNotFound || tail[0].EventID != 7 || tail[0].Requester != 99 {
		t.Errorf("unexpected first denial: %+v", tail[0])
	}
	if tail[0].Owner != 0 {
		t.Errorf("not-found denial should have zero owner, got %d", tail[0].Owner)
	}
	if tail[1].Reason != ReasonForbidden || tail[1].Owner != 42 {
		t.Errorf("unexpected second denial: %+v", tail[1])
	}
	if tail[0].At.IsZero() || tail[1].At.IsZero() {
		t.Error("denials should carry timestamps")
	}
}

func TestTailIsBounded(t *testing.T) {
	l := NewLog(4)

	for i := int64(1); i <= 10; i++ {
		l.NotFound(i, 100)
	}

	tail := l.Tail()
	if len(tail) != 4 {
		t.Fatalf("expected tail bounded at 4, got %d", len(tail))
	}
	// Oldest entries are evicted first
	if tail[0].EventID != 7 || tail[3].EventID != 10 {
		t.Errorf("expected events 7..10 in tail, got %d..%d", tail[0].EventID, tail[3].EventID)
	}
}

func TestTailReturnsCopy(t *testing.T) {
	l := NewLog(10)
	l.NotFound(1, 2)

	tail := l.Tail()
	tail[0].EventID = 999

	if l.Tail()[0].EventID != 1 {
		t.Error("mutating the returned tail must not affect the log")
	}
}

func TestConcurrentRecording(t *testing.T) {
	l := NewLog(1000)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			for j := int64(0); j < 50; j++ {
				l.Forbidden(n, j, n)
			}
		}(int64(i))
	}
	wg.Wait()

	if got := len(l.Tail()); got != 800 {
		t.Errorf("expected 800 denials, got %d", got)
	}
}
