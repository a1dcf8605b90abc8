package session

import (
	"sort"
	"time"

	"github.com/nmatte/aitally/internal/format"
)

// Message is one canonical turn. Blocks keeps the original typed content;
// Line points back into the source file.
type Message struct {
	Role       format.Role
	Timestamp  time.Time // zero for record kinds that carry none
	Blocks     []format.Block
	UUID       string
	ParentUUID string
	Usage      *format.TokenUsage
	Model      string
	Line       int
}

// Text returns the concatenated plain-text blocks of the message.
func (m *Message) Text() string {
	var out string
	for _, b := range m.Blocks {
		if b.Type == format.BlockText {
			if out != "" {
				out += "\n"
			}
			out += b.Text
		}
	}
	return out
}

// HasToolResult reports whether the message carries any tool-result block.
func (m *Message) HasToolResult() bool {
	for _, b := range m.Blocks {
		if b.Type == format.BlockToolResult {
			return true
		}
	}
	return false
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	Output   string
	IsError  bool
	Rejected bool
	MsgIndex int // index into Session.Messages
}

// ToolInvocation pairs a tool call with its result. Result may stay nil:
// the call was still pending, interrupted, or rejected when the log ended.
// That is a valid terminal state, not an error.
type ToolInvocation struct {
	ID       string
	Name     string
	Input    string
	MsgIndex int
	Result   *ToolResult
}

// Session is one logical conversation file in canonical form.
type Session struct {
	Source          format.Source
	ID              string
	FilePath        string
	WorkspaceKey    string
	FirstTimestamp  time.Time
	LastTimestamp   time.Time
	IsSubordinate   bool
	ParentSessionID string
	Summary         string
	Model           string // last model seen
	Cwd             string
	Messages        []Message // original file order, used for display
	Tools           []ToolInvocation
	Orphans         []ToolResult // results with no matching invocation
	Empty           bool         // metadata-only file
}

// Build assembles a canonical session from one file's ordered events.
func Build(source format.Source, id, path string, events []format.CanonicalEvent) *Session {
	s := &Session{Source: source, ID: id, FilePath: path}
	byCallID := make(map[string]int) // tool id -> index into s.Tools

	for _, ev := range events {
		switch ev.Kind {
		case format.EventMeta:
			if s.Cwd == "" && ev.Cwd != "" {
				s.Cwd = ev.Cwd
			}
			if ev.Model != "" {
				s.Model = ev.Model
			}
			if s.ID == "" && ev.SessionID != "" {
				s.ID = ev.SessionID
			}

		case format.EventSummary:
			s.Summary = ev.Summary

		case format.EventUsage:
			// standalone token counts attach to the most recent assistant turn
			if ev.Usage != nil {
				if m := s.lastAssistant(); m != nil {
					if m.Usage == nil {
						m.Usage = &format.TokenUsage{}
					}
					m.Usage.Add(*ev.Usage)
				}
			}

		case format.EventMessage:
			if s.Cwd == "" && ev.Cwd != "" {
				s.Cwd = ev.Cwd
			}
			if ev.Model != "" {
				s.Model = ev.Model
			}
			if ev.Sidechain {
				s.IsSubordinate = true
				if ev.SessionID != "" && ev.SessionID != s.ID {
					s.ParentSessionID = ev.SessionID
				}
			}
			msg := Message{
				Role:       ev.Role,
				Timestamp:  ev.Timestamp,
				Blocks:     ev.Blocks,
				UUID:       ev.UUID,
				ParentUUID: ev.ParentUUID,
				Usage:      ev.Usage,
				Model:      ev.Model,
				Line:       ev.Line,
			}
			idx := len(s.Messages)
			s.Messages = append(s.Messages, msg)
			s.pairTools(idx, &s.Messages[idx], byCallID)

			if !ev.Timestamp.IsZero() {
				if s.FirstTimestamp.IsZero() || ev.Timestamp.Before(s.FirstTimestamp) {
					s.FirstTimestamp = ev.Timestamp
				}
				if ev.Timestamp.After(s.LastTimestamp) {
					s.LastTimestamp = ev.Timestamp
				}
			}
		}
	}

	if s.Summary == "" && len(s.Messages) > 0 {
		s.Summary = headline(s.Messages)
	}
	s.Empty = len(s.Messages) == 0
	return s
}

// pairTools registers tool-use blocks and matches result blocks to earlier
// invocations. Unmatched results are kept as orphans; they surface upstream
// truncation and must not be discarded.
func (s *Session) pairTools(idx int, m *Message, byCallID map[string]int) {
	for _, b := range m.Blocks {
		switch b.Type {
		case format.BlockToolUse:
			s.Tools = append(s.Tools, ToolInvocation{
				ID:       b.ToolID,
				Name:     b.ToolName,
				Input:    b.ToolInput,
				MsgIndex: idx,
			})
			if b.ToolID != "" {
				byCallID[b.ToolID] = len(s.Tools) - 1
			}
		case format.BlockToolResult, format.BlockRejection:
			res := ToolResult{
				Output:   b.ToolOutput,
				IsError:  b.IsError,
				Rejected: b.Type == format.BlockRejection,
				MsgIndex: idx,
			}
			if ti, ok := byCallID[b.ToolID]; ok && b.ToolID != "" && s.Tools[ti].Result == nil {
				r := res
				s.Tools[ti].Result = &r
			} else if b.Type == format.BlockToolResult {
				s.Orphans = append(s.Orphans, res)
			}
		}
	}
}

func (s *Session) lastAssistant() *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == format.RoleAssistant {
			return &s.Messages[i]
		}
	}
	return nil
}

// ByTime returns a timestamp-sorted copy of the messages for derived
// calculations. Source timestamps are not guaranteed monotonic (context
// restoration and async writes reorder them), so display order and time
// order are kept as separate views. Zero timestamps sort first; the sort
// is stable so equal timestamps keep file order.
func (s *Session) ByTime() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// MessageByUUID resolves a message id within this session. Parent links may
// point across files; the referenced message is simply not found then, and
// callers treat the relation as non-owning.
func (s *Session) MessageByUUID(uuid string) *Message {
	if uuid == "" {
		return nil
	}
	for i := range s.Messages {
		if s.Messages[i].UUID == uuid {
			return &s.Messages[i]
		}
	}
	return nil
}

// Counts are the per-session aggregates the sync engine persists.
type Counts struct {
	Messages          int
	UserMessages      int
	AssistantMessages int
	ToolCalls         int
	ToolsByName       map[string]int
	TokensByModel     map[string]format.TokenUsage
	Usage             format.TokenUsage
}

// Counts derives the aggregate numbers for this session.
func (s *Session) Counts() Counts {
	c := Counts{
		ToolsByName:   make(map[string]int),
		TokensByModel: make(map[string]format.TokenUsage),
	}
	for i := range s.Messages {
		m := &s.Messages[i]
		c.Messages++
		switch m.Role {
		case format.RoleUser:
			c.UserMessages++
		case format.RoleAssistant:
			c.AssistantMessages++
		}
		if m.Usage != nil {
			c.Usage.Add(*m.Usage)
			model := m.Model
			if model == "" {
				model = s.Model
			}
			if model == "" {
				model = "unknown"
			}
			u := c.TokensByModel[model]
			u.Add(*m.Usage)
			c.TokensByModel[model] = u
		}
	}
	for _, t := range s.Tools {
		c.ToolCalls++
		name := t.Name
		if name == "" {
			name = "unknown"
		}
		c.ToolsByName[name]++
	}
	return c
}

// headline picks a short summary from the first user text message.
func headline(msgs []Message) string {
	for i := range msgs {
		if msgs[i].Role != format.RoleUser {
			continue
		}
		t := msgs[i].Text()
		if t == "" {
			continue
		}
		if len(t) > 200 {
			t = t[:200]
		}
		return oneLine(t)
	}
	return ""
}

func oneLine(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}
