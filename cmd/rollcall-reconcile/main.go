// Package main implements the rollcall-reconcile maintenance binary.
// It sweeps the registry against the roster artifact directory, reports
// dangling events and orphaned artifacts, and optionally rebuilds the
// rosters of dangling events from the registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rollcall/rollcall/internal/audit"
	"github.com/rollcall/rollcall/internal/reconcile"
	"github.com/rollcall/rollcall/internal/registry"
	"github.com/rollcall/rollcall/internal/roster"
)

func main() {
	var (
		dataDir string
		repair  bool
	)

	flag.StringVar(&dataDir, "data-dir", "", "Base directory holding rollcall.db and the events directory")
	flag.BoolVar(&repair, "repair", false, "Rebuild rosters for dangling events (default is report-only)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "rollcall-reconcile - Registry/artifact consistency check\n\n")
		fmt.Fprintf(os.Stderr, "Usage: rollcall-reconcile --data-dir DIR [--repair]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if dataDir == "" {
		if v := os.Getenv("ROLLCALL_DATA_DIR"); v != "" {
			dataDir = v
		} else {
			flag.Usage()
			os.Exit(2)
		}
	}

	rosters, err := roster.NewStore(dataDir + "/events")
	if err != nil {
		log.Fatalf("Failed to open roster store: %v", err)
	}

	reg, err := registry.NewSQLiteRegistry(dataDir+"/rollcall.db", rosters, audit.NewLog(0))
	if err != nil {
		log.Fatalf("Failed to open registry: %v", err)
	}
	defer reg.Close()

	ctx := context.Background()
	report, err := reconcile.Reconcile(ctx, reg, rosters)
	if err != nil {
		log.Fatalf("Reconciliation failed: %v", err)
	}

	log.Printf("Events in registry:  %d", report.TotalEvents)
	log.Printf("Roster artifacts:    %d", report.TotalArtifacts)
	log.Printf("Dangling events:     %d %v", len(report.DanglingEvents), report.DanglingEvents)
	log.Printf("Orphaned artifacts:  %d %v", len(report.OrphanedArtifacts), report.OrphanedArtifacts)

	if !report.HasIssues() {
		log.Printf("State is consistent")
		return
	}

	if !repair {
		log.Printf("Run with --repair to rebuild rosters for dangling events")
		os.Exit(1)
	}

	if err := reconcile.Repair(ctx, reg, rosters, report); err != nil {
		log.Fatalf("Repair failed: %v", err)
	}
	log.Printf("Repair complete: %d rosters rebuilt", len(report.DanglingEvents))
}
