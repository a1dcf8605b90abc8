package format

import (
	"strings"
	"testing"
)

func TestCodexDecodeLineSessionMeta(t *testing.T) {
	a := NewCodexAdapter()
	var st DecodeStats

	line := `{"timestamp":"2026-01-10T09:00:00Z","type":"session_meta","payload":{"id":"019b-1234","cwd":"/home/x/proj"}}`
	ev := a.DecodeLine([]byte(line), &st)
	if ev == nil {
		t.Fatal("DecodeLine() returned nil")
	}
	if ev.Kind != EventMeta || ev.SessionID != "019b-1234" || ev.Cwd != "/home/x/proj" {
		t.Errorf("meta event = %+v", ev)
	}
}

func TestCodexDecodeLineTurnContext(t *testing.T) {
	a := NewCodexAdapter()
	var st DecodeStats

	line := `{"timestamp":"2026-01-10T09:00:01Z","type":"turn_context","payload":{"cwd":"/home/x/proj","model":"gpt-x"}}`
	ev := a.DecodeLine([]byte(line), &st)
	if ev == nil {
		t.Fatal("DecodeLine() returned nil")
	}
	if ev.Kind != EventMeta || ev.Model != "gpt-x" {
		t.Errorf("turn_context event = %+v", ev)
	}
}

func TestCodexDecodeLineEventMessages(t *testing.T) {
	a := NewCodexAdapter()
	var st DecodeStats

	tests := []struct {
		name string
		line string
		role Role
		typ  BlockType
		text string
	}{
		{
			"user message",
			`{"type":"event_msg","payload":{"type":"user_message","message":"do the thing"}}`,
			RoleUser, BlockText, "do the thing",
		},
		{
			"agent message",
			`{"type":"event_msg","payload":{"type":"agent_message","message":"done"}}`,
			RoleAssistant, BlockText, "done",
		},
		{
			"agent reasoning",
			`{"type":"event_msg","payload":{"type":"agent_reasoning","text":"hmm"}}`,
			RoleAssistant, BlockThinking, "hmm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := a.DecodeLine([]byte(tt.line), &st)
			if ev == nil {
				t.Fatal("DecodeLine() returned nil")
			}
			if ev.Role != tt.role {
				t.Errorf("role = %q, want %q", ev.Role, tt.role)
			}
			b := ev.Blocks[0]
			if b.Type != tt.typ || b.Text != tt.text {
				t.Errorf("block = %+v", b)
			}
		})
	}
}

func TestCodexDecodeLineTokenCount(t *testing.T) {
	a := NewCodexAdapter()
	var st DecodeStats

	// last_token_usage preferred over total
	line := `{"type":"event_msg","payload":{"type":"token_count","info":{` +
		`"total_token_usage":{"input_tokens":9999,"output_tokens":9999},` +
		`"last_token_usage":{"input_tokens":120,"cached_input_tokens":30,"output_tokens":45}}}}`
	ev := a.DecodeLine([]byte(line), &st)
	if ev == nil {
		t.Fatal("DecodeLine() returned nil")
	}
	if ev.Kind != EventUsage {
		t.Errorf("Kind = %q, want usage", ev.Kind)
	}
	if ev.Usage.Input != 120 || ev.Usage.Output != 45 || ev.Usage.CacheRead != 30 {
		t.Errorf("usage = %+v", ev.Usage)
	}

	// total is the fallback
	line = `{"type":"event_msg","payload":{"type":"token_count","info":{` +
		`"total_token_usage":{"input_tokens":10,"output_tokens":5}}}}`
	ev = a.DecodeLine([]byte(line), &st)
	if ev == nil || ev.Usage.Input != 10 {
		t.Errorf("fallback usage = %+v", ev)
	}
}

func TestCodexDecodeLineTurnAborted(t *testing.T) {
	a := NewCodexAdapter()
	var st DecodeStats

	line := `{"timestamp":"2026-01-10T09:05:00Z","type":"event_msg","payload":{"type":"turn_aborted"}}`
	ev := a.DecodeLine([]byte(line), &st)
	if ev == nil {
		t.Fatal("DecodeLine() returned nil")
	}
	if ev.Role != RoleSystem || ev.Blocks[0].Type != BlockInterruption {
		t.Errorf("aborted event = %+v", ev)
	}
}

func TestCodexDecodeLineFunctionCall(t *testing.T) {
	a := NewCodexAdapter()
	var st DecodeStats

	line := `{"type":"response_item","payload":{"type":"function_call","name":"shell","arguments":"{\"cmd\":\"ls\"}","call_id":"c1"}}`
	ev := a.DecodeLine([]byte(line), &st)
	if ev == nil {
		t.Fatal("DecodeLine() returned nil")
	}
	b := ev.Blocks[0]
	if b.Type != BlockToolUse || b.ToolID != "c1" || b.ToolName != "shell" {
		t.Errorf("call block = %+v", b)
	}

	line = `{"type":"response_item","payload":{"type":"function_call_output","call_id":"c1","output":"file1"}}`
	ev = a.DecodeLine([]byte(line), &st)
	if ev == nil {
		t.Fatal("DecodeLine() returned nil for output")
	}
	b = ev.Blocks[0]
	if b.Type != BlockToolResult || b.ToolID != "c1" || b.ToolOutput != "file1" {
		t.Errorf("output block = %+v", b)
	}
}

func TestCodexDecodeLineResponseMessage(t *testing.T) {
	a := NewCodexAdapter()
	var st DecodeStats

	line := `{"type":"response_item","payload":{"type":"message","role":"assistant",` +
		`"content":[{"type":"output_text","text":"part one"},{"type":"output_text","text":"part two"}]}}`
	ev := a.DecodeLine([]byte(line), &st)
	if ev == nil {
		t.Fatal("DecodeLine() returned nil")
	}
	if ev.Role != RoleAssistant {
		t.Errorf("role = %q", ev.Role)
	}
	if !strings.Contains(ev.Blocks[0].Text, "part one") || !strings.Contains(ev.Blocks[0].Text, "part two") {
		t.Errorf("text = %q", ev.Blocks[0].Text)
	}
}

func TestCodexDecodeLineUnknownAndMalformed(t *testing.T) {
	a := NewCodexAdapter()
	var st DecodeStats

	if ev := a.DecodeLine([]byte(`{"type":"compacted","payload":{}}`), &st); ev != nil {
		t.Error("unknown type should decode to nil")
	}
	if st.Skipped != 0 {
		t.Errorf("unknown type counted as skipped: %d", st.Skipped)
	}

	if ev := a.DecodeLine([]byte(`not json`), &st); ev != nil {
		t.Error("malformed line should decode to nil")
	}
	if st.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", st.Skipped)
	}
}

func TestCodexWorkspaceKey(t *testing.T) {
	a := NewCodexAdapter()

	if key := a.WorkspaceKey(FileMeta{Cwd: "/home/x/proj/"}); key != "/home/x/proj" {
		t.Errorf("key = %q", key)
	}
	if key := a.WorkspaceKey(FileMeta{}); key != "(unresolved)" {
		t.Errorf("key = %q, want unresolved sentinel", key)
	}
}
