package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/nmatte/aitally/internal/format"
)

type SessionRow struct {
	ID            int64
	Source        string
	SessionID     string
	FilePath      string
	Workspace     string
	Summary       string
	Model         string
	Subordinate   bool
	ParentID      string
	FirstTs       string
	LastTs        string
	MessageCount  int
	UserCount     int
	AssistantCount int
	ToolCount     int
	Tokens        format.TokenUsage
	Stale         bool
}

const sessionCols = `id, source, session_id, file_path, workspace, summary, model,
    subordinate, parent_id, first_ts, last_ts,
    message_count, user_count, assistant_count, tool_count,
    input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, stale`

func scanSessionRow(row interface{ Scan(...any) error }) (*SessionRow, error) {
	var s SessionRow
	var sub, stale int
	err := row.Scan(
		&s.ID, &s.Source, &s.SessionID, &s.FilePath, &s.Workspace, &s.Summary, &s.Model,
		&sub, &s.ParentID, &s.FirstTs, &s.LastTs,
		&s.MessageCount, &s.UserCount, &s.AssistantCount, &s.ToolCount,
		&s.Tokens.Input, &s.Tokens.Output, &s.Tokens.CacheRead, &s.Tokens.CacheWrite,
		&stale,
	)
	if err != nil {
		return nil, err
	}
	s.Subordinate = sub != 0
	s.Stale = stale != 0
	return &s, nil
}

// ListFilter narrows session listings. Workspaces is a resolved set of
// keys (empty = all); Sources likewise.
type ListFilter struct {
	Sources    []format.Source
	Workspaces []string
	Since      string // YYYY-MM-DD, matched against last_ts
	Stale      bool   // list only stale sessions
	Limit      int
}

// where builds the WHERE clause; prefix qualifies column names when the
// sessions table is joined under an alias (e.g. "s.").
func (f ListFilter) where(prefix string) (string, []any) {
	var conds []string
	var args []any
	if len(f.Sources) > 0 {
		ph := make([]string, len(f.Sources))
		for i, s := range f.Sources {
			ph[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, prefix+"source IN ("+strings.Join(ph, ",")+")")
	}
	if len(f.Workspaces) > 0 {
		ph := make([]string, len(f.Workspaces))
		for i, w := range f.Workspaces {
			ph[i] = "?"
			args = append(args, w)
		}
		conds = append(conds, prefix+"workspace IN ("+strings.Join(ph, ",")+")")
	}
	if f.Since != "" {
		conds = append(conds, prefix+"last_ts >= ?")
		args = append(args, f.Since)
	}
	if f.Stale {
		conds = append(conds, prefix+"stale = 1")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListSessions returns sessions newest-first.
func (d *DB) ListSessions(f ListFilter) ([]SessionRow, error) {
	where, args := f.where("")
	q := "SELECT " + sessionCols + " FROM sessions" + where + " ORDER BY last_ts DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SessionByRowID fetches a session by its sessions.id primary key.
func (d *DB) SessionByRowID(id int64) (*SessionRow, error) {
	row := d.db.QueryRow("SELECT "+sessionCols+" FROM sessions WHERE id = ?", id)
	s, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %d", id)
	}
	return s, err
}

// FindSession resolves a session reference: an exact session id, a unique
// session-id prefix, or a file path.
func (d *DB) FindSession(ref string) (*SessionRow, error) {
	row := d.db.QueryRow(
		"SELECT "+sessionCols+" FROM sessions WHERE session_id = ? OR file_path = ?",
		ref, ref,
	)
	s, err := scanSessionRow(row)
	if err == nil {
		return s, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := d.db.Query(
		"SELECT "+sessionCols+" FROM sessions WHERE session_id LIKE ? LIMIT 2",
		ref+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []SessionRow
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("session not found: %s", ref)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous session reference: %s", ref)
	}
}

// Subordinates returns the subordinate sessions spawned by a parent
// session, matched by parent id or shared session id.
func (d *DB) Subordinates(parent *SessionRow) ([]SessionRow, error) {
	rows, err := d.db.Query(
		"SELECT "+sessionCols+" FROM sessions WHERE subordinate = 1 AND (parent_id = ? OR session_id = ?) AND id != ?",
		parent.SessionID, parent.SessionID, parent.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type MessageRow struct {
	Idx       int
	Role      string
	Ts        string
	Model     string
	Tokens    format.TokenUsage
	ToolCalls int
	Text      string
	Line      int
}

// Messages returns all stored message rows for a session in display order.
func (d *DB) Messages(sessionRowID int64) ([]MessageRow, error) {
	rows, err := d.db.Query(
		`SELECT idx, role, ts, model,
		    input_tokens, output_tokens, cache_read_tokens, cache_write_tokens,
		    tool_calls, text, line
		 FROM messages WHERE session_rowid = ? ORDER BY idx`,
		sessionRowID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(
			&m.Idx, &m.Role, &m.Ts, &m.Model,
			&m.Tokens.Input, &m.Tokens.Output, &m.Tokens.CacheRead, &m.Tokens.CacheWrite,
			&m.ToolCalls, &m.Text, &m.Line,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// StatRow is one aggregate bucket of the fixed reporting dimensions.
type StatRow struct {
	Key       string
	Sessions  int
	Messages  int
	ToolCalls int
	Tokens    format.TokenUsage
}

// StatsByWorkspace aggregates session rows per workspace key.
func (d *DB) StatsByWorkspace(f ListFilter) ([]StatRow, error) {
	where, args := f.where("")
	rows, err := d.db.Query(`
		SELECT workspace, COUNT(*), SUM(message_count), SUM(tool_count),
		    SUM(input_tokens), SUM(output_tokens), SUM(cache_read_tokens), SUM(cache_write_tokens)
		FROM sessions`+where+`
		GROUP BY workspace ORDER BY SUM(message_count) DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatRows(rows)
}

// StatsByModel aggregates token sums per model.
func (d *DB) StatsByModel(f ListFilter) ([]StatRow, error) {
	where, args := f.where("s.")
	rows, err := d.db.Query(`
		SELECT mu.model, COUNT(DISTINCT mu.session_rowid), 0, 0,
		    SUM(mu.input_tokens), SUM(mu.output_tokens),
		    SUM(mu.cache_read_tokens), SUM(mu.cache_write_tokens)
		FROM model_usage mu
		JOIN sessions s ON s.id = mu.session_rowid`+where+`
		GROUP BY mu.model ORDER BY SUM(mu.output_tokens) DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatRows(rows)
}

// StatsByTool aggregates call counts per tool.
func (d *DB) StatsByTool(f ListFilter) ([]StatRow, error) {
	where, args := f.where("s.")
	rows, err := d.db.Query(`
		SELECT tu.tool, COUNT(DISTINCT tu.session_rowid), 0, SUM(tu.calls), 0, 0, 0, 0
		FROM tool_usage tu
		JOIN sessions s ON s.id = tu.session_rowid`+where+`
		GROUP BY tu.tool ORDER BY SUM(tu.calls) DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatRows(rows)
}

// StatsByDay aggregates the daily_usage view, newest day first.
func (d *DB) StatsByDay(f ListFilter) ([]StatRow, error) {
	var conds []string
	var args []any
	if len(f.Sources) > 0 {
		ph := make([]string, len(f.Sources))
		for i, s := range f.Sources {
			ph[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, "source IN ("+strings.Join(ph, ",")+")")
	}
	if f.Since != "" {
		conds = append(conds, "day >= ?")
		args = append(args, f.Since)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	rows, err := d.db.Query(`
		SELECT day, 0, SUM(message_count), SUM(tool_calls),
		    SUM(input_tokens), SUM(output_tokens), SUM(cache_read_tokens), SUM(cache_write_tokens)
		FROM daily_usage`+where+`
		GROUP BY day ORDER BY day DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatRows(rows)
}

func scanStatRows(rows *sql.Rows) ([]StatRow, error) {
	var out []StatRow
	for rows.Next() {
		var r StatRow
		var msgs, tools sql.NullInt64
		var in, outT, cr, cw sql.NullInt64
		if err := rows.Scan(&r.Key, &r.Sessions, &msgs, &tools, &in, &outT, &cr, &cw); err != nil {
			return nil, err
		}
		r.Messages = int(msgs.Int64)
		r.ToolCalls = int(tools.Int64)
		r.Tokens = format.TokenUsage{
			Input: in.Int64, Output: outT.Int64, CacheRead: cr.Int64, CacheWrite: cw.Int64,
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WorkspaceKeys returns all distinct workspace keys in the store.
func (d *DB) WorkspaceKeys() ([]string, error) {
	rows, err := d.db.Query("SELECT DISTINCT workspace FROM sessions ORDER BY workspace")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (d *DB) SessionCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, err
}

func (d *DB) MessageCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}

func (d *DB) StaleCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE stale = 1").Scan(&n)
	return n, err
}

// FileRef identifies one synced source file.
type FileRef struct {
	Source   string
	FilePath string
	Stale    bool
}

// SyncedFiles lists the distinct files currently represented in the store,
// optionally restricted by source. Used for deletion reconciliation.
func (d *DB) SyncedFiles(sources []format.Source) ([]FileRef, error) {
	q := "SELECT DISTINCT source, file_path, stale FROM sessions"
	var args []any
	if len(sources) > 0 {
		ph := make([]string, len(sources))
		for i, s := range sources {
			ph[i] = "?"
			args = append(args, string(s))
		}
		q += " WHERE source IN (" + strings.Join(ph, ",") + ")"
	}
	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRef
	for rows.Next() {
		var f FileRef
		var stale int
		if err := rows.Scan(&f.Source, &f.FilePath, &stale); err != nil {
			return nil, err
		}
		f.Stale = stale != 0
		out = append(out, f)
	}
	return out, rows.Err()
}
