package format

import "time"

// Source identifies the product that produced a log file.
type Source string

const (
	SourceClaude Source = "claude"
	SourceCodex  Source = "codex"
	SourceGemini Source = "gemini"
)

// Role of a canonical message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// EventKind classifies a decoded record.
type EventKind string

const (
	// EventMessage is a conversational turn carrying content blocks.
	EventMessage EventKind = "message"
	// EventMeta carries session metadata (cwd, model) and no content.
	EventMeta EventKind = "meta"
	// EventSummary is a conversation summary record. Legally timestamp-less.
	EventSummary EventKind = "summary"
	// EventUsage is a standalone token-count record not attached to a turn.
	EventUsage EventKind = "usage"
)

// BlockType classifies one content block within a message.
type BlockType string

const (
	BlockText         BlockType = "text"
	BlockThinking     BlockType = "thinking"
	BlockToolUse      BlockType = "tool_use"
	BlockToolResult   BlockType = "tool_result"
	BlockCompaction   BlockType = "compaction"
	BlockInterruption BlockType = "interruption"
	BlockRejection    BlockType = "rejection"
)

// Block is one typed content block.
type Block struct {
	Type       BlockType
	Text       string
	ToolID     string // pairs tool_use with tool_result
	ToolName   string
	ToolInput  string // compact JSON
	ToolOutput string
	IsError    bool
}

// TokenUsage holds token counts from one API response.
type TokenUsage struct {
	Input      int64
	Output     int64
	CacheRead  int64
	CacheWrite int64
}

// Total returns the sum of all counters.
func (u TokenUsage) Total() int64 {
	return u.Input + u.Output + u.CacheRead + u.CacheWrite
}

// Add accumulates o into u.
func (u *TokenUsage) Add(o TokenUsage) {
	u.Input += o.Input
	u.Output += o.Output
	u.CacheRead += o.CacheRead
	u.CacheWrite += o.CacheWrite
}

// CanonicalEvent is the normalized form of one raw record, independent of
// the source product. Timestamp is zero for record kinds that legally carry
// none (summaries, file-state snapshots).
type CanonicalEvent struct {
	Kind       EventKind
	Role       Role
	Timestamp  time.Time
	Blocks     []Block
	UUID       string
	ParentUUID string
	SessionID  string
	Model      string
	Usage      *TokenUsage
	Sidechain  bool
	Cwd        string
	Summary    string
	Line       int // line number in the source file, 1-based; 0 for document formats
}

// DecodeStats counts per-file decode outcomes. Skipped lines are malformed
// records; Untyped counts legacy records that fell back to the default
// record shape (see the claude adapter).
type DecodeStats struct {
	Lines   int
	Skipped int
	Untyped int
}
