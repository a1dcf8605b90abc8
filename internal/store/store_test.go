package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nmatte/aitally/internal/format"
	"github.com/nmatte/aitally/internal/scan"
	"github.com/nmatte/aitally/internal/session"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSession(id, path, workspace string) *session.Session {
	ts := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	events := []format.CanonicalEvent{
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts,
			Blocks: []format.Block{{Type: format.BlockText, Text: "please fix the build"}}, Line: 1},
		{Kind: format.EventMessage, Role: format.RoleAssistant, Timestamp: ts.Add(time.Minute),
			Model: "m-1",
			Usage: &format.TokenUsage{Input: 100, Output: 20},
			Blocks: []format.Block{
				{Type: format.BlockText, Text: "looking"},
				{Type: format.BlockToolUse, ToolID: "c1", ToolName: "Bash"},
			}, Line: 2},
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts.Add(2 * time.Minute),
			Blocks: []format.Block{{Type: format.BlockToolResult, ToolID: "c1", ToolOutput: "ok"}}, Line: 3},
	}
	s := session.Build(format.SourceClaude, id, path, events)
	s.WorkspaceKey = workspace
	return s
}

func TestUpsertSessionIdempotent(t *testing.T) {
	db := openTestDB(t)
	s := testSession("s1", "/tmp/s1.jsonl", "/home/x/proj")
	fp := scan.Fingerprint{Mtime: 100, Size: 50}

	if err := db.UpsertSession(s, fp); err != nil {
		t.Fatalf("UpsertSession() error = %v", err)
	}
	if err := db.UpsertSession(s, fp); err != nil {
		t.Fatalf("second UpsertSession() error = %v", err)
	}

	n, err := db.SessionCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("session count = %d after double upsert, want 1", n)
	}

	m, err := db.MessageCount()
	if err != nil {
		t.Fatal(err)
	}
	if m != 3 {
		t.Errorf("message count = %d, want 3", m)
	}
}

func TestFingerprintRoundTrip(t *testing.T) {
	db := openTestDB(t)

	fp, err := db.Fingerprint(format.SourceClaude, "/tmp/s1.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if fp != nil {
		t.Errorf("unsynced file should have nil fingerprint, got %+v", fp)
	}

	s := testSession("s1", "/tmp/s1.jsonl", "/home/x/proj")
	if err := db.UpsertSession(s, scan.Fingerprint{Mtime: 100, Size: 50}); err != nil {
		t.Fatal(err)
	}

	fp, err = db.Fingerprint(format.SourceClaude, "/tmp/s1.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if fp == nil || fp.Mtime != 100 || fp.Size != 50 {
		t.Errorf("fingerprint = %+v", fp)
	}

	if err := db.ResetFingerprints(); err != nil {
		t.Fatal(err)
	}
	fp, _ = db.Fingerprint(format.SourceClaude, "/tmp/s1.jsonl")
	if fp == nil || fp.Mtime != 0 || fp.Size != 0 {
		t.Errorf("fingerprint after reset = %+v", fp)
	}
}

func TestListSessionsFilters(t *testing.T) {
	db := openTestDB(t)
	fp := scan.Fingerprint{Mtime: 1, Size: 1}

	a := testSession("aaa", "/tmp/a.jsonl", "/home/x/alpha")
	b := testSession("bbb", "/tmp/b.jsonl", "/home/x/beta")
	b.Source = format.SourceCodex
	if err := db.UpsertSession(a, fp); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertSession(b, fp); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListSessions(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d sessions, want 2", len(all))
	}

	claudeOnly, err := db.ListSessions(ListFilter{Sources: []format.Source{format.SourceClaude}})
	if err != nil {
		t.Fatal(err)
	}
	if len(claudeOnly) != 1 || claudeOnly[0].SessionID != "aaa" {
		t.Errorf("source filter = %+v", claudeOnly)
	}

	beta, err := db.ListSessions(ListFilter{Workspaces: []string{"/home/x/beta"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(beta) != 1 || beta[0].SessionID != "bbb" {
		t.Errorf("workspace filter = %+v", beta)
	}
}

func TestFindSession(t *testing.T) {
	db := openTestDB(t)
	fp := scan.Fingerprint{Mtime: 1, Size: 1}
	if err := db.UpsertSession(testSession("abc-123", "/tmp/a.jsonl", "w"), fp); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertSession(testSession("abd-456", "/tmp/b.jsonl", "w"), fp); err != nil {
		t.Fatal(err)
	}

	got, err := db.FindSession("abc-123")
	if err != nil {
		t.Fatalf("exact id: %v", err)
	}
	if got.SessionID != "abc-123" {
		t.Errorf("got %q", got.SessionID)
	}

	got, err = db.FindSession("/tmp/b.jsonl")
	if err != nil {
		t.Fatalf("file path: %v", err)
	}
	if got.SessionID != "abd-456" {
		t.Errorf("got %q", got.SessionID)
	}

	got, err = db.FindSession("abc")
	if err != nil {
		t.Fatalf("unique prefix: %v", err)
	}
	if got.SessionID != "abc-123" {
		t.Errorf("got %q", got.SessionID)
	}

	if _, err := db.FindSession("ab"); err == nil {
		t.Error("ambiguous prefix should error")
	}
	if _, err := db.FindSession("zzz"); err == nil {
		t.Error("missing session should error")
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := testSession("s1", "/tmp/s1.jsonl", "w")
	if err := db.UpsertSession(s, scan.Fingerprint{Mtime: 1, Size: 1}); err != nil {
		t.Fatal(err)
	}
	row, err := db.FindSession("s1")
	if err != nil {
		t.Fatal(err)
	}

	msgs, err := db.Messages(row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Text != "please fix the build" || msgs[0].Line != 1 {
		t.Errorf("msg[0] = %+v", msgs[0])
	}
	if msgs[1].ToolCalls != 1 || msgs[1].Tokens.Input != 100 {
		t.Errorf("msg[1] = %+v", msgs[1])
	}
}

func TestStaleLifecycle(t *testing.T) {
	db := openTestDB(t)
	s := testSession("s1", "/tmp/s1.jsonl", "w")
	if err := db.UpsertSession(s, scan.Fingerprint{Mtime: 1, Size: 1}); err != nil {
		t.Fatal(err)
	}

	if err := db.MarkStale(format.SourceClaude, "/tmp/s1.jsonl"); err != nil {
		t.Fatal(err)
	}
	n, err := db.StaleCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("stale count = %d, want 1", n)
	}

	// stale records stay queryable until purged
	row, err := db.FindSession("s1")
	if err != nil {
		t.Fatalf("stale session should remain visible: %v", err)
	}
	if !row.Stale {
		t.Error("row not flagged stale")
	}

	purged, err := db.PurgeStale()
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if n, _ := db.SessionCount(); n != 0 {
		t.Errorf("session count after purge = %d", n)
	}
	if m, _ := db.MessageCount(); m != 0 {
		t.Errorf("message count after purge = %d", m)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	fp := scan.Fingerprint{Mtime: 1, Size: 1}
	if err := db.UpsertSession(testSession("s1", "/tmp/a.jsonl", "/home/x/alpha"), fp); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertSession(testSession("s2", "/tmp/b.jsonl", "/home/x/alpha"), fp); err != nil {
		t.Fatal(err)
	}

	byWs, err := db.StatsByWorkspace(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(byWs) != 1 || byWs[0].Key != "/home/x/alpha" || byWs[0].Sessions != 2 {
		t.Errorf("by workspace = %+v", byWs)
	}
	if byWs[0].Tokens.Input != 200 {
		t.Errorf("input tokens = %d, want 200", byWs[0].Tokens.Input)
	}

	byModel, err := db.StatsByModel(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(byModel) != 1 || byModel[0].Key != "m-1" {
		t.Errorf("by model = %+v", byModel)
	}

	byTool, err := db.StatsByTool(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(byTool) != 1 || byTool[0].Key != "Bash" || byTool[0].ToolCalls != 2 {
		t.Errorf("by tool = %+v", byTool)
	}

	byDay, err := db.StatsByDay(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(byDay) != 1 || byDay[0].Key != "2026-01-10" || byDay[0].Messages != 6 {
		t.Errorf("by day = %+v", byDay)
	}
}

func TestAliases(t *testing.T) {
	db := openTestDB(t)

	if err := db.SetAlias("app", "*/my-app"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetAlias("app", "*/other-app"); err != nil {
		t.Fatal(err)
	}

	defs, err := db.Aliases()
	if err != nil {
		t.Fatal(err)
	}
	if defs["app"] != "*/other-app" {
		t.Errorf("alias = %q, set should replace", defs["app"])
	}

	if err := db.DeleteAlias("app"); err != nil {
		t.Fatal(err)
	}
	defs, _ = db.Aliases()
	if len(defs) != 0 {
		t.Errorf("aliases after delete = %v", defs)
	}
}

func TestSearchFTSPopulated(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertSession(testSession("s1", "/tmp/a.jsonl", "w"), scan.Fingerprint{Mtime: 1, Size: 1}); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := db.Raw().QueryRow("SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH 'build'").Scan(&n); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	if n != 1 {
		t.Errorf("fts matches = %d, want 1", n)
	}
}
