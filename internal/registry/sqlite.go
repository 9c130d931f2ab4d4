package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/rollcall/rollcall/internal/audit"
	rcerrors "github.com/rollcall/rollcall/internal/errors"
	"github.com/rollcall/rollcall/internal/roster"
)

// SQLiteRegistry implements Registry using SQLite for the index and a
// roster.Store for the per-event artifacts.
type SQLiteRegistry struct {
	db      *sql.DB // Write connection (single writer)
	readDB  *sql.DB // Read connection pool (concurrent readers)
	rosters *roster.Store
	audit   *audit.Log
	mu      sync.Mutex // Serializes writers; the store's unique constraint
	// is still the arbiter of duplicates, the lock only keeps the
	// insert-then-append sequence of one check-in contiguous.

	insertEventStmt   *sql.Stmt
	insertCheckinStmt *sql.Stmt
	ownerStmt         *sql.Stmt
}

// NewSQLiteRegistry opens (or creates) the registry database at dbPath and
// binds it to the given roster store. The audit log may be nil.
func NewSQLiteRegistry(dbPath string, rosters *roster.Store, auditLog *audit.Log) (*SQLiteRegistry, error) {
	// Write connection: single writer with WAL mode, foreign keys enforced.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("registry: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Read connection pool: concurrent readers via read-only mode.
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	r := &SQLiteRegistry{
		db:      db,
		readDB:  readDB,
		rosters: rosters,
		audit:   auditLog,
	}

	if err := r.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("registry: failed to initialize schema: %w", err)
	}

	if err := r.prepareStatements(); err != nil {
		readDB.Close()
		db.Close()
		return nil, err
	}

	return r, nil
}

// initSchema creates all required tables and indexes.
func (r *SQLiteRegistry) initSchema() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRegistry) prepareStatements() error {
	var err error
	r.insertEventStmt, err = r.db.Prepare(
		"INSERT INTO events (owner, created_at) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("registry: failed to prepare event insert: %w", err)
	}
	r.insertCheckinStmt, err = r.db.Prepare(
		"INSERT OR IGNORE INTO checkins (event_id, participant_id, display_name, checked_in_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("registry: failed to prepare checkin insert: %w", err)
	}
	r.ownerStmt, err = r.readDB.Prepare(
		"SELECT owner FROM events WHERE id = ?")
	if err != nil {
		return fmt.Errorf("registry: failed to prepare owner lookup: %w", err)
	}
	return nil
}

// CreateEvent inserts an event row and writes the header-only roster
// artifact, committing last. A failure between the artifact write and the
// commit rolls the insert back; the orphan artifact on disk is unreachable
// without an index row and therefore harmless.
func (r *SQLiteRegistry) CreateEvent(ctx context.Context, owner int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.StmtContext(ctx, r.insertEventStmt).ExecContext(ctx, owner, time.Now().Unix())
	if err != nil {
		return 0, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to insert event", err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return 0, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to obtain event id", err)
	}

	// The artifact header is written before the commit so the irrevocable
	// step happens last: no committed event ever lacks its artifact.
	if err := r.rosters.Create(eventID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to commit event", err)
	}
	return eventID, nil
}

// RecordCheckin inserts the (event, participant) pair and appends the
// roster line only when the insert actually added a row.
func (r *SQLiteRegistry) RecordCheckin(ctx context.Context, eventID, participantID int64, displayName string, at time.Time) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.insertCheckinStmt.ExecContext(ctx, eventID, participantID, displayName, at.Unix())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, rcerrors.NewNotFoundError(eventID)
		}
		return 0, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to insert checkin", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to read rows affected", err)
	}
	if rows == 0 {
		return AlreadyRecorded, nil
	}

	// A crash between the insert above and this append leaves the check-in
	// indexed but absent from the artifact; reconcile.Repair regenerates
	// the roster from the index in that case.
	err = r.rosters.Append(eventID, roster.Entry{
		ParticipantID: participantID,
		DisplayName:   displayName,
		CheckedInAt:   at,
	})
	if err != nil {
		return 0, err
	}
	return Recorded, nil
}

// GetExportPath authorizes the requester and returns the artifact path.
func (r *SQLiteRegistry) GetExportPath(ctx context.Context, eventID, requester int64) (string, error) {
	var owner int64
	err := r.ownerStmt.QueryRowContext(ctx, eventID).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if r.audit != nil {
				r.audit.NotFound(eventID, requester)
			}
			return "", rcerrors.NewNotFoundError(eventID)
		}
		return "", rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to look up event owner", err)
	}

	if !isOwner(owner, requester) {
		if r.audit != nil {
			r.audit.Forbidden(eventID, requester, owner)
		}
		return "", rcerrors.NewForbiddenError(eventID)
	}

	exists, err := r.rosters.Exists(eventID)
	if err != nil {
		return "", rcerrors.NewRosterError(rcerrors.CodeRosterReadFailed,
			fmt.Sprintf("failed to stat roster for event %d", eventID), err)
	}
	if !exists {
		return "", rcerrors.New(rcerrors.ErrCategoryRoster, rcerrors.CodeRosterMissing,
			fmt.Sprintf("roster artifact missing for event %d", eventID))
	}
	return r.rosters.Path(eventID), nil
}

// isOwner is the single authorization predicate for export access.
func isOwner(owner, requester int64) bool {
	return owner == requester
}

// EventIDs returns all event ids known to the index, ascending.
func (r *SQLiteRegistry) EventIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.readDB.QueryContext(ctx, "SELECT id FROM events ORDER BY id")
	if err != nil {
		return nil, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to list events", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to scan event id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "error iterating events", err)
	}
	return ids, nil
}

// CheckinEntries returns an event's check-ins in arrival order.
func (r *SQLiteRegistry) CheckinEntries(ctx context.Context, eventID int64) ([]roster.Entry, error) {
	rows, err := r.readDB.QueryContext(ctx,
		"SELECT participant_id, display_name, checked_in_at FROM checkins WHERE event_id = ? ORDER BY checked_in_at, rowid",
		eventID)
	if err != nil {
		return nil, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to query checkins", err)
	}
	defer rows.Close()

	var entries []roster.Entry
	for rows.Next() {
		var participantID, atUnix int64
		var name string
		if err := rows.Scan(&participantID, &name, &atUnix); err != nil {
			return nil, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "failed to scan checkin", err)
		}
		entries = append(entries, roster.Entry{
			ParticipantID: participantID,
			DisplayName:   name,
			CheckedInAt:   time.Unix(atUnix, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, rcerrors.NewRegistryError(rcerrors.CodeQueryFailed, "error iterating checkins", err)
	}
	return entries, nil
}

// Close closes the registry database connections.
func (r *SQLiteRegistry) Close() error {
	var firstErr error
	for _, stmt := range []*sql.Stmt{r.insertEventStmt, r.insertCheckinStmt, r.ownerStmt} {
		if stmt != nil {
			if err := stmt.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := r.readDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// isForeignKeyViolation reports whether err is a SQLite foreign key
// constraint failure (check-in against an unknown event).
func isForeignKeyViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
