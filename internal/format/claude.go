package format

import (
	"bufio"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/nmatte/aitally/internal/workspace"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

// interruptedMarker is the text claude writes as a synthetic user message
// when a turn is cancelled; the format has no dedicated cancellation record.
const interruptedMarker = "[Request interrupted by user"

// rejectedMarker appears inside a tool_result when the user declined the
// tool call.
const rejectedMarker = "The user doesn't want to proceed"

type claudeRecord struct {
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype"`
	UUID             string          `json:"uuid"`
	ParentUUID       string          `json:"parentUuid"`
	SessionID        string          `json:"sessionId"`
	IsSidechain      bool            `json:"isSidechain"`
	IsMeta           bool            `json:"isMeta"`
	IsCompactSummary bool            `json:"isCompactSummary"`
	Timestamp        string          `json:"timestamp"`
	Cwd              string          `json:"cwd"`
	Message          json.RawMessage `json:"message"`
	Summary          string          `json:"summary"` // for type="summary" records
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *claudeUsage    `json:"usage"`
}

type claudeUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"` // tool_result payload
	IsError   bool            `json:"is_error"`
}

// ClaudeAdapter decodes claude project JSONL files.
type ClaudeAdapter struct{}

func NewClaudeAdapter() *ClaudeAdapter { return &ClaudeAdapter{} }

func (a *ClaudeAdapter) Source() Source { return SourceClaude }

func (a *ClaudeAdapter) Decode(r io.Reader, st *DecodeStats) ([]CanonicalEvent, error) {
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

// DecodeLine decodes one raw record. Returns nil for malformed input
// (counted in st) and for record types that carry nothing canonical.
func (a *ClaudeAdapter) DecodeLine(line []byte, st *DecodeStats) *CanonicalEvent {
	var rec claudeRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		st.Skipped++
		return nil
	}

	switch rec.Type {
	case "summary":
		if rec.Summary == "" {
			st.Skipped++
			return nil
		}
		// summary records carry no timestamp; that is legal
		return &CanonicalEvent{Kind: EventSummary, Summary: rec.Summary}

	case "system":
		if rec.Subtype == "compact_boundary" {
			return &CanonicalEvent{
				Kind:      EventMessage,
				Role:      RoleSystem,
				Timestamp: parseTimestamp(rec.Timestamp),
				Blocks:    []Block{{Type: BlockCompaction}},
				UUID:      rec.UUID,
				SessionID: rec.SessionID,
				Cwd:       rec.Cwd,
			}
		}
		return nil

	case "file-history-snapshot":
		// file-state snapshot, no conversational content
		return nil

	case "user", "assistant":
		return a.decodeTurn(rec, st, false)

	case "":
		// legacy records predate the type tag and carry a bare user message;
		// decode them through the same path but surface the fallback
		if len(rec.Message) == 0 {
			st.Skipped++
			return nil
		}
		st.Untyped++
		rec.Type = "user"
		return a.decodeTurn(rec, st, true)

	default:
		// unknown record type: ignore, do not fail
		return nil
	}
}

func (a *ClaudeAdapter) decodeTurn(rec claudeRecord, st *DecodeStats, legacy bool) *CanonicalEvent {
	var msg claudeMessage
	if err := json.Unmarshal(rec.Message, &msg); err != nil {
		st.Skipped++
		return nil
	}

	role := RoleUser
	if rec.Type == "assistant" {
		role = RoleAssistant
	}

	ev := &CanonicalEvent{
		Kind:       EventMessage,
		Role:       role,
		Timestamp:  parseTimestamp(rec.Timestamp),
		UUID:       rec.UUID,
		ParentUUID: rec.ParentUUID,
		SessionID:  rec.SessionID,
		Model:      msg.Model,
		Sidechain:  rec.IsSidechain,
		Cwd:        rec.Cwd,
	}
	if msg.Usage != nil {
		ev.Usage = &TokenUsage{
			Input:      msg.Usage.InputTokens,
			Output:     msg.Usage.OutputTokens,
			CacheRead:  msg.Usage.CacheReadInputTokens,
			CacheWrite: msg.Usage.CacheCreationInputTokens,
		}
	}

	ev.Blocks = decodeClaudeContent(msg.Content)
	if rec.IsCompactSummary {
		// the message text is a compaction summary, not a real user turn
		ev.Blocks = append([]Block{{Type: BlockCompaction}}, ev.Blocks...)
	}
	if rec.IsMeta && len(ev.Blocks) == 0 {
		// meta records still carry cwd worth keeping
		ev.Kind = EventMeta
		return ev
	}
	if len(ev.Blocks) == 0 && !legacy {
		// user/assistant turns are never empty unless they are a known
		// zero-content marker, which decodeClaudeContent already emitted
		st.Skipped++
		return nil
	}
	return ev
}

func decodeClaudeContent(raw json.RawMessage) []Block {
	// plain-string content
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return textBlocks(s)
	}

	var blocks []claudeContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}

	var out []Block
	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, textBlocks(b.Text)...)
		case "thinking":
			if t := strings.TrimSpace(b.Thinking); t != "" {
				out = append(out, Block{Type: BlockThinking, Text: t})
			}
		case "tool_use":
			out = append(out, Block{
				Type:      BlockToolUse,
				ToolID:    b.ID,
				ToolName:  b.Name,
				ToolInput: string(b.Input),
			})
		case "tool_result":
			text := claudeResultText(b.Content)
			blk := Block{
				Type:       BlockToolResult,
				ToolID:     b.ToolUseID,
				ToolOutput: text,
				IsError:    b.IsError,
			}
			if strings.Contains(text, rejectedMarker) {
				blk.Type = BlockRejection
			}
			out = append(out, blk)
		}
	}
	return out
}

// textBlocks turns message text into blocks, recognizing the interruption
// marker claude embeds in synthetic user messages.
func textBlocks(s string) []Block {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, interruptedMarker) {
		return []Block{{Type: BlockInterruption, Text: s}}
	}
	return []Block{{Type: BlockText, Text: s}}
}

// claudeResultText flattens a tool_result payload, which is either a plain
// string or an array of text blocks.
func claudeResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var blocks []claudeContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// WorkspaceKey decodes the encoded project directory name the file sits in.
// A cwd captured from records wins when present, since the directory
// encoding is lossy.
func (a *ClaudeAdapter) WorkspaceKey(meta FileMeta) string {
	if meta.Cwd != "" {
		return workspace.KeyFromPath(meta.Cwd)
	}
	dir := filepath.Base(filepath.Dir(meta.Path))
	if dir == "." || dir == "/" || dir == "" {
		return workspace.Unresolved
	}
	return workspace.DecodeClaudeDir(dir)
}
