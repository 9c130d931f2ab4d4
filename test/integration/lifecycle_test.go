// Package integration provides end-to-end integration tests for Rollcall.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	httpapi "github.com/rollcall/rollcall/internal/api/http"
	"github.com/rollcall/rollcall/internal/archive"
	"github.com/rollcall/rollcall/internal/audit"
	"github.com/rollcall/rollcall/internal/reconcile"
	"github.com/rollcall/rollcall/internal/registry"
	"github.com/rollcall/rollcall/internal/roster"
	"github.com/rollcall/rollcall/internal/server"
	"github.com/rollcall/rollcall/internal/storage"
)

// env wires the full stack the way the application does: roster store,
// registry, local archive storage, and the HTTP handler chain.
type env struct {
	rosters  *roster.Store
	registry registry.Registry
	archiver *archive.Archiver
	server   *httptest.Server
	shutdown *server.ShutdownManager
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	dataDir := t.TempDir()

	rosters, err := roster.NewStore(dataDir + "/events")
	if err != nil {
		t.Fatalf("failed to create roster store: %v", err)
	}

	reg, err := registry.NewSQLiteRegistry(dataDir+"/rollcall.db", rosters, audit.NewLog(64))
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	store, err := storage.NewLocalStorage(dataDir + "/archive")
	if err != nil {
		t.Fatalf("failed to create archive storage: %v", err)
	}
	archiver := archive.NewArchiver(reg, store, "rosters")

	sm := server.NewShutdownManager(server.DefaultShutdownConfig())
	handler := httpapi.NewHandler(reg, archiver)
	chain := server.ShutdownMiddleware(sm)(handler.Routes())

	ts := httptest.NewServer(chain)
	t.Cleanup(ts.Close)

	return &env{rosters: rosters, registry: reg, archiver: archiver, server: ts, shutdown: sm}
}

func (e *env) createEvent(t *testing.T, owner int64) int64 {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, e.server.URL+"/v1/events", nil)
	req.Header.Set(httpapi.PrincipalHeader, fmt.Sprintf("%d", owner))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create event request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		EventID int64 `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	return body.EventID
}

func (e *env) checkin(t *testing.T, eventID, participantID int64, name string) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{
		"participant_id": participantID,
		"display_name":   name,
	})
	resp, err := http.Post(
		fmt.Sprintf("%s/v1/events/%d/checkins", e.server.URL, eventID),
		"application/json",
		bytes.NewReader(payload),
	)
	if err != nil {
		t.Fatalf("checkin request failed: %v", err)
	}
	return resp
}

func TestFullLifecycle(t *testing.T) {
	e := setupEnv(t)

	// Owner 42 opens an event
	eventID := e.createEvent(t, 42)

	// Three participants check in, one of them twice
	for _, p := range []struct {
		id   int64
		name string
	}{
		{100, `Ann "A" Lee`},
		{101, "Bob, Jr."},
		{100, "Ann Again"},
		{102, "Carol"},
	} {
		resp := e.checkin(t, eventID, p.id, p.name)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("checkin returned %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	// Owner exports the roster
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/events/%d/export", e.server.URL, eventID), nil)
	req.Header.Set(httpapi.PrincipalHeader, "42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	data, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 entries, got %d lines: %q", len(lines), string(data))
	}
	if lines[0] != roster.Header {
		t.Errorf("unexpected header line: %q", lines[0])
	}
	// The duplicate check-in kept the first display name
	if !strings.Contains(lines[1], `"Ann ""A"" Lee"`) {
		t.Errorf("expected first check-in preserved, got %q", lines[1])
	}
	if strings.Contains(string(data), "Ann Again") {
		t.Errorf("duplicate check-in must not appear in the roster")
	}

	// A stranger is refused the same export
	req2, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/events/%d/export", e.server.URL, eventID), nil)
	req2.Header.Set(httpapi.PrincipalHeader, "7")
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("export request failed: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for non-owner, got %d", resp2.StatusCode)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	e := setupEnv(t)

	eventID := e.createEvent(t, 42)
	resp := e.checkin(t, eventID, 100, "Ann")
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v1/events/%d/archive", e.server.URL, eventID), nil)
	req.Header.Set(httpapi.PrincipalHeader, "42")
	archResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("archive request failed: %v", err)
	}
	archResp.Body.Close()
	if archResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", archResp.StatusCode)
	}

	data, err := e.archiver.Fetch(context.Background(), eventID, 42)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.HasPrefix(string(data), roster.Header) {
		t.Errorf("archived roster missing header: %q", string(data))
	}
	if !strings.Contains(string(data), `"Ann"`) {
		t.Errorf("archived roster missing entry: %q", string(data))
	}
}

func TestCrashRecoveryRebuildsRoster(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	eventID := e.createEvent(t, 42)
	for i := int64(1); i <= 3; i++ {
		resp := e.checkin(t, eventID, 100+i, fmt.Sprintf("Guest %d", i))
		resp.Body.Close()
	}

	// Simulate artifact loss
	if err := os.Remove(e.rosters.Path(eventID)); err != nil {
		t.Fatalf("failed to remove roster: %v", err)
	}

	report, err := reconcile.Reconcile(ctx, e.registry, e.rosters)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(report.DanglingEvents) != 1 || report.DanglingEvents[0] != eventID {
		t.Fatalf("expected event %d dangling, got %v", eventID, report.DanglingEvents)
	}

	if err := reconcile.Repair(ctx, e.registry, e.rosters, report); err != nil {
		t.Fatalf("repair failed: %v", err)
	}

	entries, err := e.rosters.ReadEntries(eventID)
	if err != nil {
		t.Fatalf("rebuilt roster unreadable: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 rebuilt entries, got %d", len(entries))
	}
}

func TestShutdownRejectsNewRequests(t *testing.T) {
	e := setupEnv(t)

	if err := e.shutdown.Shutdown(context.Background(), "test"); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	resp, err := http.Get(e.server.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", resp.StatusCode)
	}
}
