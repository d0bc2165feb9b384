package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Profiles must be created first: every other table references them.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    partner_id TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (partner_id) REFERENCES profiles(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS partner_invitations (
    id TEXT PRIMARY KEY,
    inviter_id TEXT NOT NULL,
    invite_code TEXT NOT NULL UNIQUE,
    invitee_email TEXT,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'accepted', 'expired', 'cancelled')),
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    accepted_by TEXT,
    accepted_at INTEGER,
    FOREIGN KEY (inviter_id) REFERENCES profiles(id) ON DELETE CASCADE,
    FOREIGN KEY (accepted_by) REFERENCES profiles(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS chores (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    partner_id TEXT,
    title TEXT NOT NULL,
    done INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (owner_id) REFERENCES profiles(id) ON DELETE CASCADE,
    FOREIGN KEY (partner_id) REFERENCES profiles(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS chore_completions (
    id TEXT PRIMARY KEY,
    chore_id TEXT NOT NULL,
    completed_by TEXT NOT NULL,
    completed_at INTEGER NOT NULL,
    FOREIGN KEY (chore_id) REFERENCES chores(id) ON DELETE CASCADE,
    FOREIGN KEY (completed_by) REFERENCES profiles(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS thanks (
    id TEXT PRIMARY KEY,
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    message TEXT NOT NULL,
    chore_id TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (from_id) REFERENCES profiles(id) ON DELETE CASCADE,
    FOREIGN KEY (to_id) REFERENCES profiles(id) ON DELETE CASCADE,
    FOREIGN KEY (chore_id) REFERENCES chores(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_invitations_inviter ON partner_invitations(inviter_id);
CREATE INDEX IF NOT EXISTS idx_invitations_status_expiry ON partner_invitations(status, expires_at);
CREATE INDEX IF NOT EXISTS idx_chores_owner ON chores(owner_id);
CREATE INDEX IF NOT EXISTS idx_chores_partner ON chores(partner_id);
CREATE INDEX IF NOT EXISTS idx_completions_chore ON chore_completions(chore_id);
CREATE INDEX IF NOT EXISTS idx_completions_by ON chore_completions(completed_by);
CREATE INDEX IF NOT EXISTS idx_thanks_from ON thanks(from_id, created_at);
CREATE INDEX IF NOT EXISTS idx_thanks_to ON thanks(to_id, created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
