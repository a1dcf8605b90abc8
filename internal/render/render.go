package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/nmatte/aitally/internal/store"
)

const (
	colorReset   = "\033[0m"
	colorUser    = "\033[1;34m" // bold blue
	colorAssist  = "\033[1;32m" // bold green
	colorSystem  = "\033[2;33m" // dim yellow for system events
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for keyword highlights
)

type Options struct {
	HitIdx  int    // message index to highlight, -1 for none
	Context int    // messages before/after hit to show
	Width   int    // wrap width (0 = no wrap)
	Query   string // search query for keyword highlighting
}

// fts5Operators are FTS5 operators that should not be highlighted as keywords.
var fts5Operators = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
	"and": true, "or": true, "not": true, "near": true,
}

// highlightKeywords wraps case-insensitive matches of query terms in bold red ANSI codes.
func highlightKeywords(text, query string) string {
	if query == "" {
		return text
	}
	terms := strings.Fields(query)
	var filtered []string
	for _, t := range terms {
		if !fts5Operators[t] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return text
	}
	for _, term := range filtered {
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			idx := strings.Index(strings.ToLower(text[i:]), lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			orig := text[pos : pos+len(term)]
			replacement := colorBoldRed + orig + colorReset
			text = text[:pos] + replacement + text[pos+len(term):]
			i = pos + len(replacement)
		}
	}
	return text
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// Transcript renders a stored session as an ANSI transcript and returns
// the content plus the 0-based output line of the hit message (-1 if no
// hit).
func Transcript(db *store.DB, sess *store.SessionRow, opts Options) (string, int, error) {
	if opts.Context == 0 {
		opts.Context = 10
	}
	if opts.Context < 0 {
		opts.Context = 1000000 // no limit
	}

	msgs, err := db.Messages(sess.ID)
	if err != nil {
		return "", -1, fmt.Errorf("get messages: %w", err)
	}
	if len(msgs) == 0 {
		return "(empty session)", -1, nil
	}

	// window around the hit
	start, end := 0, len(msgs)
	hitPos := -1
	if opts.HitIdx >= 0 {
		for i, m := range msgs {
			if m.Idx == opts.HitIdx {
				hitPos = i
				break
			}
		}
		if hitPos >= 0 {
			start = hitPos - opts.Context
			if start < 0 {
				start = 0
			}
			end = hitPos + opts.Context + 1
			if end > len(msgs) {
				end = len(msgs)
			}
		}
	}

	var b strings.Builder
	hitLine := -1
	lineCount := 0
	separator := colorDim + "--------------------------------------------------" + colorReset

	writeLine := func(s string) {
		for _, wl := range wrapLine(s, opts.Width) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	title := sess.Workspace
	if sess.Subordinate {
		title += " (agent)"
	}
	writeLine(fmt.Sprintf("%s--- %s [%s] %s ---%s", colorDim, sess.SessionID, sess.Source, title, colorReset))

	if start > 0 {
		writeLine(fmt.Sprintf("%s... (%d messages before) ...%s", colorDim, start, colorReset))
	}

	for i := start; i < end; i++ {
		m := msgs[i]
		isHit := i == hitPos

		if i > start {
			writeLine(separator)
		}
		if isHit {
			hitLine = lineCount
		}

		var roleColor, roleLabel string
		switch m.Role {
		case "user":
			roleColor = colorUser
			roleLabel = "USER"
		case "assistant":
			roleColor = colorAssist
			roleLabel = "ASST"
		default:
			roleColor = colorSystem
			roleLabel = strings.ToUpper(m.Role)
		}

		if isHit {
			writeLine(fmt.Sprintf("%s>> %s > %s <<%s", colorHit, roleLabel, m.Ts, colorReset))
		} else {
			writeLine(fmt.Sprintf("%s%s >%s %s%s%s", roleColor, roleLabel, colorReset, colorDim, m.Ts, colorReset))
		}

		text := highlightKeywords(m.Text, opts.Query)
		for _, tl := range strings.Split(indentLines(text, "  "), "\n") {
			writeLine(tl)
		}
		writeLine("") // blank line after message
	}

	if end < len(msgs) {
		writeLine(fmt.Sprintf("%s... (%d messages after) ...%s", colorDim, len(msgs)-end, colorReset))
	}

	return b.String(), hitLine, nil
}
