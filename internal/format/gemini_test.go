package format

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const geminiDoc = `{
  "sessionId": "g-123",
  "projectHash": "abc123",
  "startTime": "2026-01-12T10:00:00Z",
  "lastUpdated": "2026-01-12T10:30:00Z",
  "messages": [
    {
      "id": "m1",
      "timestamp": "2026-01-12T10:00:01Z",
      "type": "user",
      "content": "refactor the parser"
    },
    {
      "id": "m2",
      "timestamp": "2026-01-12T10:00:10Z",
      "type": "gemini",
      "model": "g-model",
      "content": "Working on it.",
      "thoughts": [{"subject": "Plan", "description": "split into steps"}],
      "tokens": {"input": 50, "output": 20, "cached": 5, "thoughts": 3, "tool": 2},
      "toolCalls": [
        {"id": "t1", "name": "read_file", "args": {"path": "a.go"}, "status": "success", "resultDisplay": "package a"},
        {"id": "t2", "name": "write_file", "args": {"path": "b.go"}, "status": "canceled"}
      ]
    }
  ]
}`

func TestGeminiDecode(t *testing.T) {
	a := NewGeminiAdapter("")
	var st DecodeStats

	events, err := a.Decode(strings.NewReader(geminiDoc), &st)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (meta + 2 messages)", len(events))
	}

	meta := events[0]
	if meta.Kind != EventMeta || meta.SessionID != "g-123" {
		t.Errorf("meta event = %+v", meta)
	}

	user := events[1]
	if user.Role != RoleUser || user.Blocks[0].Text != "refactor the parser" {
		t.Errorf("user event = %+v", user)
	}

	asst := events[2]
	if asst.Role != RoleAssistant || asst.Model != "g-model" {
		t.Errorf("assistant event role=%q model=%q", asst.Role, asst.Model)
	}
	// thinking, text, tool_use, tool_result, tool_use, rejection
	types := make([]BlockType, len(asst.Blocks))
	for i, b := range asst.Blocks {
		types[i] = b.Type
	}
	want := []BlockType{BlockThinking, BlockText, BlockToolUse, BlockToolResult, BlockToolUse, BlockRejection}
	if len(types) != len(want) {
		t.Fatalf("block types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("block[%d] = %q, want %q", i, types[i], want[i])
		}
	}
	if asst.Blocks[3].ToolOutput != "package a" {
		t.Errorf("result output = %q", asst.Blocks[3].ToolOutput)
	}
	if asst.Usage == nil {
		t.Fatal("tokens not decoded")
	}
	// output folds in thoughts and tool tokens
	if asst.Usage.Input != 50 || asst.Usage.Output != 25 || asst.Usage.CacheRead != 5 {
		t.Errorf("usage = %+v", asst.Usage)
	}
}

func TestGeminiDecodeBadDocument(t *testing.T) {
	a := NewGeminiAdapter("")
	var st DecodeStats

	// a whole-document format fails at file level, unlike line formats
	if _, err := a.Decode(strings.NewReader("{truncated"), &st); err == nil {
		t.Fatal("Decode() should fail on an undecodable document")
	}
}

func TestGeminiWorkspaceKey(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "projects.json")
	data, _ := json.Marshal(map[string]string{"abc123": "/home/x/proj"})
	if err := os.WriteFile(idxPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	a := NewGeminiAdapter(idxPath)
	if key := a.WorkspaceKey(FileMeta{ProjectHash: "abc123"}); key != "/home/x/proj" {
		t.Errorf("key = %q", key)
	}
	if key := a.WorkspaceKey(FileMeta{ProjectHash: "missing"}); key != "(unresolved)" {
		t.Errorf("key = %q, want unresolved sentinel", key)
	}
	if key := a.WorkspaceKey(FileMeta{}); key != "(unresolved)" {
		t.Errorf("empty hash key = %q", key)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry("")
	for _, s := range []Source{SourceClaude, SourceCodex, SourceGemini} {
		a, ok := r.Lookup(s)
		if !ok {
			t.Fatalf("no adapter for %q", s)
		}
		if a.Source() != s {
			t.Errorf("adapter source = %q, want %q", a.Source(), s)
		}
	}
	if _, ok := r.Lookup(Source("other")); ok {
		t.Error("Lookup should miss unregistered sources")
	}
	if got := len(r.Sources()); got != 3 {
		t.Errorf("Sources() = %d entries, want 3", got)
	}
}
