// Package registry provides the record keeper for activity checks: the
// authoritative SQLite index of events and check-ins, paired with the
// per-event roster artifacts on the filesystem.
package registry

// Schema contains the SQL schema definitions for the registry (rollcall.db).
// The registry is the source of truth; roster artifacts are derived state
// regenerable from these tables.

// CreateEventsTableSQL creates the events table. Event ids are assigned by
// SQLite and never reused (AUTOINCREMENT), since the id is the join key to
// check-ins and to the artifact's storage location.
const CreateEventsTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner INTEGER NOT NULL,
    created_at INTEGER NOT NULL
)`

// CreateCheckinsTableSQL creates the check-ins table. The composite primary
// key is the sole arbiter of "exactly once per (event, participant)"; the
// foreign key rejects check-ins against events that were never created.
// Display name and timestamp are stored here as well so a lost roster
// artifact can be rebuilt from relational truth.
const CreateCheckinsTableSQL = `
CREATE TABLE IF NOT EXISTS checkins (
    event_id INTEGER NOT NULL,
    participant_id INTEGER NOT NULL,
    display_name TEXT NOT NULL,
    checked_in_at INTEGER NOT NULL,
    PRIMARY KEY (event_id, participant_id),
    FOREIGN KEY (event_id) REFERENCES events(id)
)`

// CreateCheckinsIndexSQL supports roster rebuilds in arrival order.
const CreateCheckinsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_checkins_event ON checkins(event_id, checked_in_at)`

// AllSchemaSQL returns all schema statements in creation order.
func AllSchemaSQL() []string {
	return []string{
		CreateEventsTableSQL,
		CreateCheckinsTableSQL,
		CreateCheckinsIndexSQL,
	}
}
