package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: Trips must be created BEFORE the tables that reference it.
const schema = `
CREATE TABLE IF NOT EXISTS trips (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trip_members (
    trip_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    PRIMARY KEY (trip_id, member_id),
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS slots (
    id TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    title TEXT NOT NULL,
    activity_id TEXT NOT NULL,
    category TEXT NOT NULL,
    day_number INTEGER NOT NULL,
    sort_order INTEGER NOT NULL,
    pivot_depth INTEGER NOT NULL DEFAULT 0,
    was_swapped INTEGER NOT NULL DEFAULT 0,
    replacement_activity_id TEXT,
    pivot_event_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (trip_id, id),
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ballots (
    trip_id TEXT NOT NULL,
    slot_id TEXT NOT NULL,
    threshold REAL NOT NULL,
    resolved INTEGER NOT NULL DEFAULT 0,
    outcome TEXT,
    created_at INTEGER NOT NULL,
    resolved_at INTEGER,
    PRIMARY KEY (trip_id, slot_id),
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ballot_votes (
    trip_id TEXT NOT NULL,
    slot_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    choice TEXT NOT NULL,
    PRIMARY KEY (trip_id, slot_id, member_id),
    FOREIGN KEY (trip_id, slot_id) REFERENCES ballots(trip_id, slot_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS debts (
    trip_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    balance REAL NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (trip_id, member_id),
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pivot_events (
    id TEXT PRIMARY KEY,
    trip_id TEXT NOT NULL,
    slot_id TEXT NOT NULL,
    trigger_type TEXT NOT NULL,
    trigger_payload TEXT,
    status TEXT NOT NULL,
    pivot_depth INTEGER NOT NULL,
    proposed_activity_id TEXT,
    replacement_activity_id TEXT,
    proposed_by TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    resolved_at INTEGER,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS behavioral_signals (
    id TEXT PRIMARY KEY,
    trip_id TEXT NOT NULL,
    slot_id TEXT,
    member_id TEXT,
    signal_type TEXT NOT NULL,
    signal_value REAL NOT NULL,
    trip_phase TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS intention_signals (
    id TEXT PRIMARY KEY,
    trip_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    activity_id TEXT NOT NULL,
    intention_type TEXT NOT NULL,
    source TEXT NOT NULL,
    confidence REAL NOT NULL,
    user_provided INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS gate_audit (
    id TEXT PRIMARY KEY,
    trip_id TEXT,
    member_id TEXT,
    prompt TEXT NOT NULL,
    label TEXT NOT NULL,
    confidence REAL NOT NULL,
    method TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS moderation_queue (
    id TEXT PRIMARY KEY,
    activity_id TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    slot_id TEXT,
    reported_by TEXT NOT NULL,
    note TEXT,
    status TEXT NOT NULL,
    review_status TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_slots_trip_day ON slots(trip_id, day_number);
CREATE INDEX IF NOT EXISTS idx_pivots_trip_slot ON pivot_events(trip_id, slot_id);
CREATE INDEX IF NOT EXISTS idx_pivots_expiry ON pivot_events(status, expires_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_pivots_one_proposed
    ON pivot_events(trip_id, slot_id) WHERE status = 'proposed';
CREATE INDEX IF NOT EXISTS idx_behavioral_signals_trip ON behavioral_signals(trip_id);
CREATE INDEX IF NOT EXISTS idx_intention_signals_trip ON intention_signals(trip_id);
CREATE INDEX IF NOT EXISTS idx_gate_audit_trip ON gate_audit(trip_id);
CREATE INDEX IF NOT EXISTS idx_moderation_trip ON moderation_queue(trip_id, review_status);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
