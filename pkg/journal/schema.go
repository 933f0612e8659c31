package journal

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Timestamps are stored as Unix nanoseconds so that both drivers compare
// them the same way.
const schema = `
CREATE TABLE IF NOT EXISTS transitions (
    id TEXT PRIMARY KEY,
    execution_id TEXT NOT NULL,
    correlation_id TEXT,
    policy_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    phase TEXT NOT NULL,
    location TEXT,
    outcome TEXT,
    stage TEXT,
    error TEXT,
    recorded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_execution_id ON transitions(execution_id);
CREATE INDEX IF NOT EXISTS idx_transitions_recorded_at ON transitions(recorded_at);
CREATE INDEX IF NOT EXISTS idx_transitions_policy_id ON transitions(policy_id);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const insertTransition = `
INSERT INTO transitions (
    id, execution_id, correlation_id, policy_id, kind, phase,
    location, outcome, stage, error, recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectColumns = `
SELECT id, execution_id, correlation_id, policy_id, kind, phase,
       location, outcome, stage, error, recorded_at
FROM transitions
`
