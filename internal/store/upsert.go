package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/nmatte/aitally/internal/format"
	"github.com/nmatte/aitally/internal/scan"
	"github.com/nmatte/aitally/internal/session"
)

// Fingerprint returns the stored fingerprint for a file, or nil when the
// file has never been synced.
func (d *DB) Fingerprint(source format.Source, filePath string) (*scan.Fingerprint, error) {
	var fp scan.Fingerprint
	err := d.db.QueryRow(
		"SELECT mtime, size FROM sessions WHERE source = ? AND file_path = ?",
		string(source), filePath,
	).Scan(&fp.Mtime, &fp.Size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fp, nil
}

// UpsertSession replaces all derived records for one source file inside a
// single transaction. After it commits the store holds exactly one record
// per (source, sessionId, filePath); a crash mid-upsert leaves the previous
// committed state intact.
func (d *DB) UpsertSession(s *session.Session, fp scan.Fingerprint) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteSessionTx(tx, string(s.Source), s.ID, s.FilePath); err != nil {
		return err
	}

	c := s.Counts()
	res, err := tx.Exec(
		`INSERT INTO sessions (source, session_id, file_path, workspace, summary, model,
		    subordinate, parent_id, first_ts, last_ts,
		    message_count, user_count, assistant_count, tool_count,
		    input_tokens, output_tokens, cache_read_tokens, cache_write_tokens,
		    mtime, size, stale)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		string(s.Source), s.ID, s.FilePath, s.WorkspaceKey, s.Summary, s.Model,
		boolInt(s.IsSubordinate), s.ParentSessionID,
		tsString(s.FirstTimestamp), tsString(s.LastTimestamp),
		c.Messages, c.UserMessages, c.AssistantMessages, c.ToolCalls,
		c.Usage.Input, c.Usage.Output, c.Usage.CacheRead, c.Usage.CacheWrite,
		fp.Mtime, fp.Size,
	)
	if err != nil {
		return err
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO messages (session_rowid, idx, role, ts, model,
		    input_tokens, output_tokens, cache_read_tokens, cache_write_tokens,
		    tool_calls, text, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range s.Messages {
		m := &s.Messages[i]
		var u format.TokenUsage
		if m.Usage != nil {
			u = *m.Usage
		}
		toolCalls := 0
		for _, b := range m.Blocks {
			if b.Type == format.BlockToolUse {
				toolCalls++
			}
		}
		_, err := stmt.Exec(
			rowid, i, string(m.Role), tsString(m.Timestamp), m.Model,
			u.Input, u.Output, u.CacheRead, u.CacheWrite,
			toolCalls, previewText(m), m.Line,
		)
		if err != nil {
			return err
		}
	}

	for tool, calls := range c.ToolsByName {
		if _, err := tx.Exec(
			"INSERT INTO tool_usage (session_rowid, tool, calls) VALUES (?, ?, ?)",
			rowid, tool, calls,
		); err != nil {
			return err
		}
	}

	for model, u := range c.TokensByModel {
		if _, err := tx.Exec(
			`INSERT INTO model_usage (session_rowid, model,
			    input_tokens, output_tokens, cache_read_tokens, cache_write_tokens)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rowid, model, u.Input, u.Output, u.CacheRead, u.CacheWrite,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func deleteSessionTx(tx *sql.Tx, source, sessionID, filePath string) error {
	rows, err := tx.Query(
		"SELECT id FROM sessions WHERE source = ? AND session_id = ? AND file_path = ?",
		source, sessionID, filePath,
	)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := tx.Exec("DELETE FROM messages WHERE session_rowid = ?", id); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM tool_usage WHERE session_rowid = ?", id); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM model_usage WHERE session_rowid = ?", id); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
			return err
		}
	}
	return nil
}

// MarkStale flags sessions whose files vanished from disk. Records are
// retained; removal requires the explicit purge operation.
func (d *DB) MarkStale(source format.Source, filePath string) error {
	_, err := d.db.Exec(
		"UPDATE sessions SET stale = 1 WHERE source = ? AND file_path = ?",
		string(source), filePath,
	)
	return err
}

// PurgeStale removes all stale session records and their derived rows.
// This is the only path that deletes aggregates.
func (d *DB) PurgeStale() (int, error) {
	rows, err := d.db.Query("SELECT id FROM sessions WHERE stale = 1")
	if err != nil {
		return 0, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for _, id := range ids {
		for _, q := range []string{
			"DELETE FROM messages WHERE session_rowid = ?",
			"DELETE FROM tool_usage WHERE session_rowid = ?",
			"DELETE FROM model_usage WHERE session_rowid = ?",
			"DELETE FROM sessions WHERE id = ?",
		} {
			if _, err := tx.Exec(q, id); err != nil {
				return 0, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ResetFingerprints zeroes all stored fingerprints so the next sync
// reprocesses every file. Escape hatch for content changes that did not
// move mtime or size.
func (d *DB) ResetFingerprints() error {
	_, err := d.db.Exec("UPDATE sessions SET mtime = 0, size = 0")
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func tsString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// previewText flattens a message into the text stored for preview and FTS.
func previewText(m *session.Message) string {
	var parts []string
	for _, b := range m.Blocks {
		switch b.Type {
		case format.BlockText:
			parts = append(parts, b.Text)
		case format.BlockThinking:
			parts = append(parts, b.Text)
		case format.BlockToolUse:
			parts = append(parts, "[tool: "+b.ToolName+"]")
		case format.BlockToolResult:
			out := b.ToolOutput
			if len(out) > 400 {
				out = out[:400]
			}
			if out != "" {
				parts = append(parts, out)
			}
		case format.BlockInterruption:
			parts = append(parts, "[interrupted]")
		case format.BlockRejection:
			parts = append(parts, "[rejected]")
		case format.BlockCompaction:
			parts = append(parts, "[context compacted]")
		}
	}
	text := strings.Join(parts, "\n")
	if len(text) > maxTextSize {
		text = text[:maxTextSize]
	}
	return text
}
