package format

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/nmatte/aitally/internal/workspace"
)

// Top-level record in codex rollout JSONL.
type codexRecord struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// session_meta payload
type codexSessionMeta struct {
	ID  string `json:"id"`
	Cwd string `json:"cwd"`
}

// turn_context payload
type codexTurnContext struct {
	Cwd   string `json:"cwd"`
	Model string `json:"model"`
}

// event_msg payload (flat, not nested)
type codexEventPayload struct {
	Type    string          `json:"type"`
	Message string          `json:"message"` // user_message / agent_message
	Text    string          `json:"text"`    // agent_reasoning
	Info    *codexTokenInfo `json:"info"`    // token_count
}

type codexTokenInfo struct {
	TotalTokenUsage *codexTokenUsage `json:"total_token_usage"`
	LastTokenUsage  *codexTokenUsage `json:"last_token_usage"`
}

type codexTokenUsage struct {
	InputTokens       int64 `json:"input_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens"`
	OutputTokens      int64 `json:"output_tokens"`
}

// response_item payload
type codexResponsePayload struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Name      string `json:"name"`      // function_call
	Arguments string `json:"arguments"` // function_call
	CallID    string `json:"call_id"`
	Output    string `json:"output"` // function_call_output
	Content   []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Summary []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"summary"` // reasoning
}

// CodexAdapter decodes codex rollout JSONL files.
type CodexAdapter struct{}

func NewCodexAdapter() *CodexAdapter { return &CodexAdapter{} }

func (a *CodexAdapter) Source() Source { return SourceCodex }

func (a *CodexAdapter) Decode(r io.Reader, st *DecodeStats) ([]CanonicalEvent, error) {
	var events []CanonicalEvent

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		st.Lines++
		if ev := a.DecodeLine(line, st); ev != nil {
			ev.Line = lineNum
			events = append(events, *ev)
		}
	}
	return events, scanner.Err()
}

// DecodeLine decodes one raw record; nil for malformed or unknown records.
func (a *CodexAdapter) DecodeLine(line []byte, st *DecodeStats) *CanonicalEvent {
	var rec codexRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		st.Skipped++
		return nil
	}

	ts := parseTimestamp(rec.Timestamp)

	switch rec.Type {
	case "session_meta":
		var meta codexSessionMeta
		if err := json.Unmarshal(rec.Payload, &meta); err != nil {
			st.Skipped++
			return nil
		}
		return &CanonicalEvent{Kind: EventMeta, Timestamp: ts, SessionID: meta.ID, Cwd: meta.Cwd}

	case "turn_context":
		var tc codexTurnContext
		if err := json.Unmarshal(rec.Payload, &tc); err != nil {
			st.Skipped++
			return nil
		}
		return &CanonicalEvent{Kind: EventMeta, Timestamp: ts, Cwd: tc.Cwd, Model: tc.Model}

	case "event_msg":
		return a.decodeEventMsg(rec.Payload, ts, st)

	case "response_item":
		return a.decodeResponseItem(rec.Payload, ts, st)

	default:
		return nil
	}
}

func (a *CodexAdapter) decodeEventMsg(payload json.RawMessage, ts time.Time, st *DecodeStats) *CanonicalEvent {
	var evt codexEventPayload
	if err := json.Unmarshal(payload, &evt); err != nil {
		st.Skipped++
		return nil
	}

	switch evt.Type {
	case "user_message":
		text := strings.TrimSpace(evt.Message)
		if text == "" {
			return nil
		}
		return &CanonicalEvent{
			Kind: EventMessage, Role: RoleUser, Timestamp: ts,
			Blocks: []Block{{Type: BlockText, Text: text}},
		}
	case "agent_message":
		text := strings.TrimSpace(evt.Message)
		if text == "" {
			return nil
		}
		return &CanonicalEvent{
			Kind: EventMessage, Role: RoleAssistant, Timestamp: ts,
			Blocks: []Block{{Type: BlockText, Text: text}},
		}
	case "agent_reasoning":
		text := strings.TrimSpace(evt.Text)
		if text == "" {
			return nil
		}
		return &CanonicalEvent{
			Kind: EventMessage, Role: RoleAssistant, Timestamp: ts,
			Blocks: []Block{{Type: BlockThinking, Text: text}},
		}
	case "token_count":
		if evt.Info == nil {
			return nil
		}
		u := evt.Info.LastTokenUsage
		if u == nil {
			u = evt.Info.TotalTokenUsage
		}
		if u == nil {
			return nil
		}
		return &CanonicalEvent{
			Kind: EventUsage, Timestamp: ts,
			Usage: &TokenUsage{Input: u.InputTokens, Output: u.OutputTokens, CacheRead: u.CachedInputTokens},
		}
	case "turn_aborted":
		// codex records cancellation as its own event type; claude signals
		// the same thing via a marker user message
		return &CanonicalEvent{
			Kind: EventMessage, Role: RoleSystem, Timestamp: ts,
			Blocks: []Block{{Type: BlockInterruption}},
		}
	default:
		return nil
	}
}

func (a *CodexAdapter) decodeResponseItem(payload json.RawMessage, ts time.Time, st *DecodeStats) *CanonicalEvent {
	var item codexResponsePayload
	if err := json.Unmarshal(payload, &item); err != nil {
		st.Skipped++
		return nil
	}

	switch item.Type {
	case "message":
		role := RoleAssistant
		if item.Role == "user" {
			role = RoleUser
		}
		var parts []string
		for _, c := range item.Content {
			if (c.Type == "input_text" || c.Type == "output_text" || c.Type == "text") && c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
		text := strings.TrimSpace(strings.Join(parts, "\n"))
		if text == "" {
			return nil
		}
		return &CanonicalEvent{
			Kind: EventMessage, Role: role, Timestamp: ts,
			Blocks: []Block{{Type: BlockText, Text: text}},
		}

	case "reasoning":
		var parts []string
		for _, s := range item.Summary {
			if s.Text != "" {
				parts = append(parts, s.Text)
			}
		}
		text := strings.TrimSpace(strings.Join(parts, "\n"))
		if text == "" {
			return nil
		}
		return &CanonicalEvent{
			Kind: EventMessage, Role: RoleAssistant, Timestamp: ts,
			Blocks: []Block{{Type: BlockThinking, Text: text}},
		}

	case "function_call", "local_shell_call", "custom_tool_call":
		name := item.Name
		if name == "" {
			name = item.Type
		}
		return &CanonicalEvent{
			Kind: EventMessage, Role: RoleAssistant, Timestamp: ts,
			Blocks: []Block{{
				Type:      BlockToolUse,
				ToolID:    item.CallID,
				ToolName:  name,
				ToolInput: item.Arguments,
			}},
		}

	case "function_call_output", "custom_tool_call_output":
		return &CanonicalEvent{
			Kind: EventMessage, Role: RoleUser, Timestamp: ts,
			Blocks: []Block{{
				Type:       BlockToolResult,
				ToolID:     item.CallID,
				ToolOutput: strings.TrimSpace(item.Output),
			}},
		}

	default:
		return nil
	}
}

// WorkspaceKey uses the cwd recorded in session_meta. Codex never encodes
// the project in the path, so without a cwd the key is unresolved.
func (a *CodexAdapter) WorkspaceKey(meta FileMeta) string {
	if meta.Cwd == "" {
		return workspace.Unresolved
	}
	return workspace.KeyFromPath(meta.Cwd)
}
