// Package export writes transcripts as markdown, splitting long sessions
// into multiple parts at boundaries chosen by the partition selector.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nmatte/aitally/internal/format"
	"github.com/nmatte/aitally/internal/partition"
	"github.com/nmatte/aitally/internal/session"
	"github.com/nmatte/aitally/internal/store"
)

// DefaultTargetSize is the estimated size of one exported part, in the
// default estimator's units (display cells).
const DefaultTargetSize = 60000

type Writer struct {
	Registry   *format.Registry
	TargetSize int
	Estimator  partition.SizeEstimator // nil = partition.DefaultEstimator
}

// Export re-decodes the session's source file for full fidelity (the store
// keeps truncated text only) and writes one markdown file per part.
// Returns the written paths in order.
func (w *Writer) Export(row *store.SessionRow, outDir string) ([]string, error) {
	adapter, ok := w.Registry.Lookup(format.Source(row.Source))
	if !ok {
		return nil, fmt.Errorf("no adapter for source %q", row.Source)
	}

	f, err := os.Open(row.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	var st format.DecodeStats
	events, err := adapter.Decode(f, &st)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", row.FilePath, err)
	}
	sess := session.Build(format.Source(row.Source), row.SessionID, row.FilePath, events)
	sess.WorkspaceKey = row.Workspace
	if sess.Empty {
		return nil, fmt.Errorf("session %s has no messages", row.SessionID)
	}

	target := w.TargetSize
	if target <= 0 {
		target = DefaultTargetSize
	}
	ranges := partition.Ranges(sess.Messages, target, w.Estimator)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for i, rng := range ranges {
		name := fmt.Sprintf("%s.md", row.SessionID)
		if len(ranges) > 1 {
			name = fmt.Sprintf("%s-part-%02d.md", row.SessionID, i+1)
		}
		path := filepath.Join(outDir, name)
		content := renderPart(sess, rng[0], rng[1], i+1, len(ranges))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func renderPart(sess *session.Session, from, to, part, parts int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", sess.ID)
	fmt.Fprintf(&b, "- Source: %s\n", sess.Source)
	if sess.WorkspaceKey != "" {
		fmt.Fprintf(&b, "- Workspace: %s\n", sess.WorkspaceKey)
	}
	if !sess.FirstTimestamp.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", sess.FirstTimestamp.Format(time.RFC3339))
	}
	if sess.IsSubordinate {
		b.WriteString("- Agent sub-conversation\n")
	}
	if parts > 1 {
		fmt.Fprintf(&b, "- Part %d of %d (messages %d-%d)\n", part, parts, from+1, to)
	}
	b.WriteString("\n")

	for i := from; i < to; i++ {
		m := &sess.Messages[i]
		writeMessage(&b, m)
	}
	return b.String()
}

func writeMessage(b *strings.Builder, m *session.Message) {
	switch m.Role {
	case format.RoleUser:
		b.WriteString("## User")
	case format.RoleAssistant:
		b.WriteString("## Assistant")
	default:
		b.WriteString("## System")
	}
	if !m.Timestamp.IsZero() {
		fmt.Fprintf(b, " (%s)", m.Timestamp.Format("2006-01-02 15:04:05"))
	}
	b.WriteString("\n\n")

	for _, blk := range m.Blocks {
		switch blk.Type {
		case format.BlockText:
			b.WriteString(blk.Text)
			b.WriteString("\n\n")
		case format.BlockThinking:
			b.WriteString("> [thinking]\n")
			for _, line := range strings.Split(blk.Text, "\n") {
				b.WriteString("> " + line + "\n")
			}
			b.WriteString("\n")
		case format.BlockToolUse:
			fmt.Fprintf(b, "**Tool: %s**\n\n", blk.ToolName)
			if blk.ToolInput != "" {
				fmt.Fprintf(b, "```json\n%s\n```\n\n", blk.ToolInput)
			}
		case format.BlockToolResult:
			out := blk.ToolOutput
			if len(out) > 2000 {
				out = out[:2000] + "\n... (truncated)"
			}
			if out != "" {
				fmt.Fprintf(b, "```\n%s\n```\n\n", out)
			}
		case format.BlockInterruption:
			b.WriteString("*(interrupted by user)*\n\n")
		case format.BlockRejection:
			b.WriteString("*(tool call rejected)*\n\n")
		case format.BlockCompaction:
			b.WriteString("*(context compacted)*\n\n")
		}
	}
}
