package session

import (
	"testing"
	"time"

	"github.com/nmatte/aitally/internal/format"
)

func ts(sec int) time.Time {
	return time.Date(2026, 1, 10, 12, 0, sec, 0, time.UTC)
}

func TestBuildPairsToolCalls(t *testing.T) {
	events := []format.CanonicalEvent{
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(0),
			Blocks: []format.Block{{Type: format.BlockText, Text: "run ls"}}},
		{Kind: format.EventMessage, Role: format.RoleAssistant, Timestamp: ts(1),
			Blocks: []format.Block{{Type: format.BlockToolUse, ToolID: "c1", ToolName: "Bash", ToolInput: `{"command":"ls"}`}}},
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(2),
			Blocks: []format.Block{{Type: format.BlockToolResult, ToolID: "c1", ToolOutput: "file1"}}},
	}

	s := Build(format.SourceClaude, "s1", "/tmp/s1.jsonl", events)
	if len(s.Tools) != 1 {
		t.Fatalf("got %d tool invocations, want 1", len(s.Tools))
	}
	inv := s.Tools[0]
	if inv.Name != "Bash" || inv.MsgIndex != 1 {
		t.Errorf("invocation = %+v", inv)
	}
	if inv.Result == nil {
		t.Fatal("result not paired")
	}
	if inv.Result.Output != "file1" || inv.Result.MsgIndex != 2 {
		t.Errorf("result = %+v", inv.Result)
	}
	if len(s.Orphans) != 0 {
		t.Errorf("unexpected orphans: %+v", s.Orphans)
	}
}

func TestBuildPendingToolCall(t *testing.T) {
	events := []format.CanonicalEvent{
		{Kind: format.EventMessage, Role: format.RoleAssistant, Timestamp: ts(0),
			Blocks: []format.Block{{Type: format.BlockToolUse, ToolID: "c1", ToolName: "Bash"}}},
	}
	s := Build(format.SourceClaude, "s1", "", events)
	if len(s.Tools) != 1 {
		t.Fatalf("got %d invocations", len(s.Tools))
	}
	// a missing result is a valid terminal state
	if s.Tools[0].Result != nil {
		t.Error("pending call should have nil result")
	}
}

func TestBuildOrphanResult(t *testing.T) {
	events := []format.CanonicalEvent{
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(0),
			Blocks: []format.Block{{Type: format.BlockToolResult, ToolID: "ghost", ToolOutput: "out"}}},
	}
	s := Build(format.SourceClaude, "s1", "", events)
	if len(s.Orphans) != 1 {
		t.Fatalf("got %d orphans, want 1", len(s.Orphans))
	}
	if s.Orphans[0].Output != "out" {
		t.Errorf("orphan = %+v", s.Orphans[0])
	}
}

func TestBuildUsageAttachesToLastAssistant(t *testing.T) {
	events := []format.CanonicalEvent{
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(0),
			Blocks: []format.Block{{Type: format.BlockText, Text: "q"}}},
		{Kind: format.EventMessage, Role: format.RoleAssistant, Timestamp: ts(1),
			Blocks: []format.Block{{Type: format.BlockText, Text: "a"}}},
		{Kind: format.EventUsage, Timestamp: ts(2),
			Usage: &format.TokenUsage{Input: 10, Output: 5}},
		{Kind: format.EventUsage, Timestamp: ts(3),
			Usage: &format.TokenUsage{Input: 2, Output: 1}},
	}
	s := Build(format.SourceCodex, "s1", "", events)
	m := s.Messages[1]
	if m.Usage == nil {
		t.Fatal("usage not attached")
	}
	if m.Usage.Input != 12 || m.Usage.Output != 6 {
		t.Errorf("usage = %+v", m.Usage)
	}
}

func TestBuildMetadata(t *testing.T) {
	events := []format.CanonicalEvent{
		{Kind: format.EventMeta, SessionID: "meta-id", Cwd: "/home/x/proj", Model: "m-1"},
		{Kind: format.EventSummary, Summary: "did a thing"},
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(5),
			Blocks: []format.Block{{Type: format.BlockText, Text: "hello"}}},
	}
	s := Build(format.SourceCodex, "", "/tmp/x.jsonl", events)
	if s.ID != "meta-id" {
		t.Errorf("ID = %q", s.ID)
	}
	if s.Cwd != "/home/x/proj" || s.Model != "m-1" {
		t.Errorf("cwd=%q model=%q", s.Cwd, s.Model)
	}
	if s.Summary != "did a thing" {
		t.Errorf("Summary = %q", s.Summary)
	}
	if s.Empty {
		t.Error("session with a message marked empty")
	}
}

func TestBuildHeadlineFallback(t *testing.T) {
	events := []format.CanonicalEvent{
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(0),
			Blocks: []format.Block{{Type: format.BlockText, Text: "fix the\nlogin flow"}}},
	}
	s := Build(format.SourceClaude, "s1", "", events)
	if s.Summary != "fix the login flow" {
		t.Errorf("Summary = %q", s.Summary)
	}
}

func TestBuildSubordinate(t *testing.T) {
	events := []format.CanonicalEvent{
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(0), Sidechain: true,
			SessionID: "parent-1",
			Blocks:    []format.Block{{Type: format.BlockText, Text: "sub task"}}},
	}
	s := Build(format.SourceClaude, "sub-1", "", events)
	if !s.IsSubordinate {
		t.Error("sidechain session not marked subordinate")
	}
	if s.ParentSessionID != "parent-1" {
		t.Errorf("ParentSessionID = %q", s.ParentSessionID)
	}
}

func TestByTimeKeepsFileOrderSeparate(t *testing.T) {
	// out-of-order timestamps: file order must survive, ByTime must sort
	events := []format.CanonicalEvent{
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(10), UUID: "a",
			Blocks: []format.Block{{Type: format.BlockText, Text: "later"}}},
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(2), UUID: "b",
			Blocks: []format.Block{{Type: format.BlockText, Text: "earlier"}}},
		{Kind: format.EventMessage, Role: format.RoleUser, UUID: "c",
			Blocks: []format.Block{{Type: format.BlockText, Text: "no ts"}}},
	}
	s := Build(format.SourceClaude, "s1", "", events)

	if s.Messages[0].UUID != "a" || s.Messages[1].UUID != "b" {
		t.Error("file order changed")
	}

	byTime := s.ByTime()
	if byTime[0].UUID != "c" || byTime[1].UUID != "b" || byTime[2].UUID != "a" {
		order := []string{byTime[0].UUID, byTime[1].UUID, byTime[2].UUID}
		t.Errorf("ByTime order = %v, want [c b a] (zero first)", order)
	}

	// span ignores the zero timestamp
	if !s.FirstTimestamp.Equal(ts(2)) || !s.LastTimestamp.Equal(ts(10)) {
		t.Errorf("span = %v .. %v", s.FirstTimestamp, s.LastTimestamp)
	}
}

func TestCounts(t *testing.T) {
	events := []format.CanonicalEvent{
		{Kind: format.EventMessage, Role: format.RoleUser, Timestamp: ts(0),
			Blocks: []format.Block{{Type: format.BlockText, Text: "q"}}},
		{Kind: format.EventMessage, Role: format.RoleAssistant, Timestamp: ts(1), Model: "m-1",
			Usage:  &format.TokenUsage{Input: 100, Output: 10},
			Blocks: []format.Block{{Type: format.BlockToolUse, ToolID: "c1", ToolName: "Bash"}}},
		{Kind: format.EventMessage, Role: format.RoleAssistant, Timestamp: ts(2), Model: "m-2",
			Usage:  &format.TokenUsage{Input: 50, Output: 5},
			Blocks: []format.Block{{Type: format.BlockToolUse, ToolID: "c2", ToolName: "Bash"}}},
	}
	s := Build(format.SourceClaude, "s1", "", events)
	c := s.Counts()

	if c.Messages != 3 || c.UserMessages != 1 || c.AssistantMessages != 2 {
		t.Errorf("counts = %+v", c)
	}
	if c.ToolCalls != 2 || c.ToolsByName["Bash"] != 2 {
		t.Errorf("tool counts = %+v", c)
	}
	if c.Usage.Input != 150 || c.Usage.Output != 15 {
		t.Errorf("usage = %+v", c.Usage)
	}
	if c.TokensByModel["m-1"].Input != 100 || c.TokensByModel["m-2"].Input != 50 {
		t.Errorf("per-model = %+v", c.TokensByModel)
	}
}

func TestBuildEmptySession(t *testing.T) {
	s := Build(format.SourceGemini, "g1", "", []format.CanonicalEvent{
		{Kind: format.EventMeta, SessionID: "g1"},
	})
	if !s.Empty {
		t.Error("metadata-only session should be marked empty")
	}
}
