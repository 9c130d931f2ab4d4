// Package reconcile checks consistency between the registry index and the
// roster artifact tree, and repairs what the index alone can regenerate.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rollcall/rollcall/internal/registry"
	"github.com/rollcall/rollcall/internal/roster"
)

// Report contains the results of an index/artifact reconciliation.
type Report struct {
	// DanglingEvents are indexed events whose artifact is missing or
	// malformed (a prior partial failure).
	DanglingEvents []int64
	// OrphanedArtifacts are roster files with no corresponding index row.
	// These are the accepted leftovers of a crash between artifact write
	// and transaction commit; they are unreachable and never served.
	OrphanedArtifacts []int64
	// TotalEvents is the number of indexed events checked.
	TotalEvents int
	// TotalArtifacts is the number of roster files scanned.
	TotalArtifacts int
	// RunAt is when the reconciliation was performed.
	RunAt time.Time
}

// HasIssues returns true if the report contains dangling events or
// orphaned artifacts.
func (r *Report) HasIssues() bool {
	return len(r.DanglingEvents) > 0 || len(r.OrphanedArtifacts) > 0
}

// Reconcile scans every indexed event for a readable, well-formed roster
// artifact and every artifact for an index row.
func Reconcile(ctx context.Context, reg registry.Registry, rosters *roster.Store) (*Report, error) {
	report := &Report{RunAt: time.Now()}

	ids, err := reg.EventIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: failed to list indexed events: %w", err)
	}
	report.TotalEvents = len(ids)

	indexed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		indexed[id] = true
		if _, err := rosters.ReadEntries(id); err != nil {
			report.DanglingEvents = append(report.DanglingEvents, id)
		}
	}

	onDisk, err := rosters.ListEventIDs()
	if err != nil {
		return nil, fmt.Errorf("reconcile: failed to scan artifact tree: %w", err)
	}
	report.TotalArtifacts = len(onDisk)

	for _, id := range onDisk {
		if !indexed[id] {
			report.OrphanedArtifacts = append(report.OrphanedArtifacts, id)
		}
	}

	return report, nil
}

// Repair regenerates every dangling event's artifact from the relational
// rows, which carry the full roster content. Orphaned artifacts are logged
// but never deleted here.
func Repair(ctx context.Context, reg registry.Registry, rosters *roster.Store, report *Report) error {
	for _, id := range report.DanglingEvents {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := reg.CheckinEntries(ctx, id)
		if err != nil {
			return fmt.Errorf("reconcile: failed to load checkins for event %d: %w", id, err)
		}
		if err := rosters.Rebuild(id, entries); err != nil {
			return fmt.Errorf("reconcile: failed to rebuild roster for event %d: %w", id, err)
		}
		log.Printf("reconcile: rebuilt roster for event %d (%d entries)", id, len(entries))
	}

	for _, id := range report.OrphanedArtifacts {
		log.Printf("reconcile: orphaned artifact for id %d (no index row, leaving in place)", id)
	}
	return nil
}
