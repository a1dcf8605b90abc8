package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// maxTextSize caps stored message text; the full text stays in the source
// file, the store only needs enough for preview and FTS.
const maxTextSize = 8 * 1024

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS sessions (
    id                 INTEGER PRIMARY KEY,
    source             TEXT NOT NULL,
    session_id         TEXT NOT NULL,
    file_path          TEXT NOT NULL,
    workspace          TEXT NOT NULL DEFAULT '',
    summary            TEXT NOT NULL DEFAULT '',
    model              TEXT NOT NULL DEFAULT '',
    subordinate        INTEGER NOT NULL DEFAULT 0,
    parent_id          TEXT NOT NULL DEFAULT '',
    first_ts           TEXT NOT NULL DEFAULT '',
    last_ts            TEXT NOT NULL DEFAULT '',
    message_count      INTEGER NOT NULL DEFAULT 0,
    user_count         INTEGER NOT NULL DEFAULT 0,
    assistant_count    INTEGER NOT NULL DEFAULT 0,
    tool_count         INTEGER NOT NULL DEFAULT 0,
    input_tokens       INTEGER NOT NULL DEFAULT 0,
    output_tokens      INTEGER NOT NULL DEFAULT 0,
    cache_read_tokens  INTEGER NOT NULL DEFAULT 0,
    cache_write_tokens INTEGER NOT NULL DEFAULT 0,
    mtime              INTEGER NOT NULL DEFAULT 0,
    size               INTEGER NOT NULL DEFAULT 0,
    stale              INTEGER NOT NULL DEFAULT 0,
    UNIQUE (source, session_id, file_path)
);

CREATE TABLE IF NOT EXISTS messages (
    session_rowid INTEGER NOT NULL,
    idx           INTEGER NOT NULL,
    role          TEXT NOT NULL DEFAULT '',
    ts            TEXT NOT NULL DEFAULT '',
    model         TEXT NOT NULL DEFAULT '',
    input_tokens  INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    cache_read_tokens  INTEGER NOT NULL DEFAULT 0,
    cache_write_tokens INTEGER NOT NULL DEFAULT 0,
    tool_calls    INTEGER NOT NULL DEFAULT 0,
    text          TEXT NOT NULL DEFAULT '',
    line          INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (session_rowid, idx)
);

CREATE TABLE IF NOT EXISTS tool_usage (
    session_rowid INTEGER NOT NULL,
    tool          TEXT NOT NULL,
    calls         INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (session_rowid, tool)
);

CREATE TABLE IF NOT EXISTS model_usage (
    session_rowid INTEGER NOT NULL,
    model         TEXT NOT NULL,
    input_tokens  INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    cache_read_tokens  INTEGER NOT NULL DEFAULT 0,
    cache_write_tokens INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (session_rowid, model)
);

CREATE TABLE IF NOT EXISTS aliases (
    name    TEXT PRIMARY KEY,
    pattern TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_workspace ON sessions(workspace);
CREATE INDEX IF NOT EXISTS idx_sessions_last_ts ON sessions(last_ts);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);

-- per-day aggregates are a derived view over message rows, so they are
-- consistent with session upserts by construction
CREATE VIEW IF NOT EXISTS daily_usage AS
    SELECT s.source AS source,
           substr(m.ts, 1, 10) AS day,
           COUNT(*) AS message_count,
           SUM(m.tool_calls) AS tool_calls,
           SUM(m.input_tokens) AS input_tokens,
           SUM(m.output_tokens) AS output_tokens,
           SUM(m.cache_read_tokens) AS cache_read_tokens,
           SUM(m.cache_write_tokens) AS cache_write_tokens
    FROM messages m
    JOIN sessions s ON s.id = m.session_rowid
    WHERE m.ts != ''
    GROUP BY s.source, substr(m.ts, 1, 10);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    text,
    content=messages,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, text) VALUES('delete', old.rowid, old.text);
    INSERT INTO messages_fts(rowid, text) VALUES (new.rowid, new.text);
END;
`

// DB is the embedded aggregate store. The sync engine is its only writer;
// every other component reads committed state only.
type DB struct {
	db *sql.DB
}

func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	// additive migrations for databases created before these columns;
	// historical rows keep their defaults, nothing is rewritten
	db.Exec("ALTER TABLE sessions ADD COLUMN stale INTEGER NOT NULL DEFAULT 0")
	db.Exec("ALTER TABLE sessions ADD COLUMN parent_id TEXT NOT NULL DEFAULT ''")
	db.Exec("ALTER TABLE messages ADD COLUMN tool_calls INTEGER NOT NULL DEFAULT 0")

	db.Exec("CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)")
	d := &DB{db: db}
	d.migrateSchemaVersion()

	return d, nil
}

// schemaVersion should be bumped whenever decode or aggregation logic
// changes, to force a full re-sync.
const schemaVersion = "1"

func (d *DB) migrateSchemaVersion() {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err != nil || ver != schemaVersion {
		// force reprocessing by resetting all stored fingerprints
		d.db.Exec("UPDATE sessions SET mtime = 0, size = 0")
		d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Raw exposes the underlying handle for read-only consumers (search, tui).
func (d *DB) Raw() *sql.DB {
	return d.db
}
