package search

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/nmatte/aitally/internal/store"
)

type Result struct {
	RowID     int64 // sessions.id
	SessionID string
	MsgIdx    int
	LastTs    string
	Source    string
	Workspace string
	Summary   string
	Snippet   string
	Role      string
	Rank      float64
}

type Options struct {
	Query     string
	Source    string // "" = all
	Role      string // "" = all, "user", "assistant"
	Workspace string // exact workspace key, "" = all
	Since     string // "" = no filter, e.g. "2024-01-01"
	Limit     int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet extracts a snippet around the first occurrence of query in text.
func makeSnippet(text, query string, contextChars int) string {
	lower := strings.ToLower(text)
	qLower := strings.ToLower(query)
	idx := strings.Index(lower, qLower)
	if idx < 0 {
		if len([]rune(text)) > contextChars*2 {
			return string([]rune(text)[:contextChars*2]) + "..."
		}
		return text
	}
	runes := []rune(text)
	qRunes := []rune(query)
	runePos := len([]rune(text[:idx]))
	start := runePos - contextChars
	if start < 0 {
		start = 0
	}
	end := runePos + len(qRunes) + contextChars
	if end > len(runes) {
		end = len(runes)
	}
	prefix := ""
	suffix := ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	snippet := string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+len(qRunes)]) + "<<<" +
		string(runes[runePos+len(qRunes):end])
	return prefix + snippet + suffix
}

// Search runs a full-text query over stored message text. FTS5 handles
// word-based queries; CJK queries fall back to LIKE substring matching
// because the unicode61 tokenizer splits ideographs poorly.
func Search(db *store.DB, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	// Fetch more results before dedup so we still have enough after
	origLimit := opts.Limit
	opts.Limit = origLimit * 3

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(db, opts)
	} else {
		results, err = searchFTS(db, opts)
	}
	if err != nil {
		return nil, err
	}

	// Deduplicate: keep only the best-ranked result per session
	seen := make(map[int64]bool)
	var deduped []Result
	for _, r := range results {
		if seen[r.RowID] {
			continue
		}
		seen[r.RowID] = true
		deduped = append(deduped, r)
		if len(deduped) >= origLimit {
			break
		}
	}
	return deduped, nil
}

// ListAll returns sessions newest-first without a text query, shaped as
// search results so the TUI can share one result path.
func ListAll(db *store.DB, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	conds := []string{"1=1"}
	var args []interface{}
	if opts.Source != "" {
		conds = append(conds, "s.source = ?")
		args = append(args, opts.Source)
	}
	if opts.Workspace != "" {
		conds = append(conds, "s.workspace = ?")
		args = append(args, opts.Workspace)
	}
	if opts.Since != "" {
		conds = append(conds, "s.last_ts >= ?")
		args = append(args, opts.Since)
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.session_id, s.last_ts, s.source, s.workspace, s.summary
		FROM sessions s
		WHERE %s
		ORDER BY s.last_ts DESC
		LIMIT ?
	`, strings.Join(conds, " AND "))
	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.RowID, &r.SessionID, &r.LastTs,
			&r.Source, &r.Workspace, &r.Summary,
		); err != nil {
			return nil, err
		}
		r.MsgIdx = -1
		r.Snippet = r.Summary
		results = append(results, r)
	}
	return results, rows.Err()
}

func filterConds(opts Options) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if opts.Source != "" {
		conds = append(conds, "s.source = ?")
		args = append(args, opts.Source)
	}
	if opts.Role != "" {
		conds = append(conds, "m.role = ?")
		args = append(args, opts.Role)
	}
	if opts.Workspace != "" {
		conds = append(conds, "s.workspace = ?")
		args = append(args, opts.Workspace)
	}
	if opts.Since != "" {
		conds = append(conds, "s.last_ts >= ?")
		args = append(args, opts.Since)
	}
	return conds, args
}

func searchFTS(db *store.DB, opts Options) ([]Result, error) {
	conds := []string{"messages_fts MATCH ?"}
	args := []interface{}{opts.Query}
	fc, fa := filterConds(opts)
	conds = append(conds, fc...)
	args = append(args, fa...)

	query := fmt.Sprintf(`
		SELECT
			s.id,
			s.session_id,
			m.idx,
			s.last_ts,
			s.source,
			s.workspace,
			s.summary,
			snippet(messages_fts, 0, '>>>', '<<<', '...', 40) as snip,
			m.role,
			bm25(messages_fts, 1.0) as rank
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.rowid
		JOIN sessions s ON m.session_rowid = s.id
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, strings.Join(conds, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

func searchLike(db *store.DB, opts Options) ([]Result, error) {
	conds := []string{"m.text LIKE ?"}
	args := []interface{}{"%" + opts.Query + "%"}
	fc, fa := filterConds(opts)
	conds = append(conds, fc...)
	args = append(args, fa...)

	query := fmt.Sprintf(`
		SELECT
			s.id,
			s.session_id,
			m.idx,
			s.last_ts,
			s.source,
			s.workspace,
			s.summary,
			m.text,
			m.role
		FROM messages m
		JOIN sessions s ON m.session_rowid = s.id
		WHERE %s
		ORDER BY s.last_ts DESC
		LIMIT ?
	`, strings.Join(conds, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var fullText string
		if err := rows.Scan(
			&r.RowID, &r.SessionID, &r.MsgIdx, &r.LastTs,
			&r.Source, &r.Workspace, &r.Summary,
			&fullText, &r.Role,
		); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(fullText, opts.Query, 30)
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.RowID, &r.SessionID, &r.MsgIdx, &r.LastTs,
			&r.Source, &r.Workspace, &r.Summary,
			&r.Snippet, &r.Role, &r.Rank,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
