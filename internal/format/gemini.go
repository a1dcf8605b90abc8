package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nmatte/aitally/internal/workspace"
)

// Gemini chat files are single JSON documents, not JSONL.
type geminiSession struct {
	SessionID   string          `json:"sessionId"`
	ProjectHash string          `json:"projectHash"`
	StartTime   string          `json:"startTime"`
	LastUpdated string          `json:"lastUpdated"`
	Messages    []geminiMessage `json:"messages"`
}

type geminiMessage struct {
	ID        string           `json:"id"`
	Timestamp string           `json:"timestamp"`
	Type      string           `json:"type"` // "user" or "gemini"
	Content   string           `json:"content"`
	Model     string           `json:"model"`
	Thoughts  []geminiThought  `json:"thoughts"`
	Tokens    *geminiTokens    `json:"tokens"`
	ToolCalls []geminiToolCall `json:"toolCalls"`
}

type geminiThought struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

type geminiTokens struct {
	Input    int64 `json:"input"`
	Output   int64 `json:"output"`
	Cached   int64 `json:"cached"`
	Thoughts int64 `json:"thoughts"`
	Tool     int64 `json:"tool"`
}

type geminiToolCall struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Args          json.RawMessage `json:"args"`
	Status        string          `json:"status"` // success, error, canceled
	ResultDisplay json.RawMessage `json:"resultDisplay"`
}

// GeminiAdapter decodes gemini chat JSON documents. Project hashes are
// resolved through a side index; a missing entry yields the unresolved
// sentinel, never an error.
type GeminiAdapter struct {
	indexPath string
	index     *workspace.HashIndex
}

func NewGeminiAdapter(indexPath string) *GeminiAdapter {
	return &GeminiAdapter{indexPath: indexPath}
}

func (a *GeminiAdapter) Source() Source { return SourceGemini }

func (a *GeminiAdapter) Decode(r io.Reader, st *DecodeStats) ([]CanonicalEvent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc geminiSession
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode gemini document: %w", err)
	}

	var events []CanonicalEvent
	events = append(events, CanonicalEvent{
		Kind:      EventMeta,
		SessionID: doc.SessionID,
		Timestamp: parseTimestamp(doc.StartTime),
	})

	for _, m := range doc.Messages {
		st.Lines++
		ev := a.decodeMessage(m, st)
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events, nil
}

func (a *GeminiAdapter) decodeMessage(m geminiMessage, st *DecodeStats) *CanonicalEvent {
	role := RoleUser
	switch m.Type {
	case "user":
	case "gemini", "assistant":
		role = RoleAssistant
	default:
		// unknown message type: ignore rather than fail
		return nil
	}

	ev := &CanonicalEvent{
		Kind:      EventMessage,
		Role:      role,
		Timestamp: parseTimestamp(m.Timestamp),
		UUID:      m.ID,
		Model:     m.Model,
	}
	if m.Tokens != nil {
		ev.Usage = &TokenUsage{
			Input:     m.Tokens.Input,
			Output:    m.Tokens.Output + m.Tokens.Thoughts + m.Tokens.Tool,
			CacheRead: m.Tokens.Cached,
		}
	}

	for _, t := range m.Thoughts {
		text := strings.TrimSpace(t.Description)
		if t.Subject != "" {
			text = strings.TrimSpace(t.Subject + ": " + text)
		}
		if text != "" {
			ev.Blocks = append(ev.Blocks, Block{Type: BlockThinking, Text: text})
		}
	}
	if text := strings.TrimSpace(m.Content); text != "" {
		ev.Blocks = append(ev.Blocks, Block{Type: BlockText, Text: text})
	}
	for _, tc := range m.ToolCalls {
		ev.Blocks = append(ev.Blocks, Block{
			Type:      BlockToolUse,
			ToolID:    tc.ID,
			ToolName:  tc.Name,
			ToolInput: string(tc.Args),
		})
		// gemini stores call and result in one record; emit the result
		// block only when the call actually finished
		switch tc.Status {
		case "success", "error":
			ev.Blocks = append(ev.Blocks, Block{
				Type:       BlockToolResult,
				ToolID:     tc.ID,
				ToolOutput: geminiResultText(tc.ResultDisplay),
				IsError:    tc.Status == "error",
			})
		case "canceled", "cancelled":
			ev.Blocks = append(ev.Blocks, Block{Type: BlockRejection, ToolID: tc.ID})
		}
	}

	if len(ev.Blocks) == 0 {
		st.Skipped++
		return nil
	}
	return ev
}

func geminiResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	// structured display (e.g. file diffs); keep the compact JSON
	return string(raw)
}

// WorkspaceKey resolves the project hash through the side index, loading
// the index lazily on first use.
func (a *GeminiAdapter) WorkspaceKey(meta FileMeta) string {
	if meta.ProjectHash == "" {
		return workspace.Unresolved
	}
	if a.index == nil {
		idx, err := workspace.LoadHashIndex(a.indexPath)
		if err != nil {
			return workspace.Unresolved
		}
		a.index = idx
	}
	return a.index.Resolve(meta.ProjectHash)
}
