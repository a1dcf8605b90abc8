// Package partition decides where to split an overlong transcript into
// readable parts. It scores candidate boundaries inside a size window and
// always produces a cut, so export never fails on awkward input.
package partition

import (
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/nmatte/aitally/internal/format"
	"github.com/nmatte/aitally/internal/session"
)

// SizeEstimator estimates the rendered size of one message, in whatever
// unit the export collaborator renders in. Pluggable so exporters with
// different templates can supply their own.
type SizeEstimator func(m *session.Message) int

// DefaultEstimator approximates rendered width: display cells of the text
// blocks plus a flat charge per tool block for the call/result framing.
func DefaultEstimator(m *session.Message) int {
	size := 0
	for _, b := range m.Blocks {
		switch b.Type {
		case format.BlockText, format.BlockThinking:
			size += runewidth.StringWidth(b.Text)
		case format.BlockToolUse:
			size += 80 + len(b.ToolInput)
		case format.BlockToolResult:
			size += 40 + len(b.ToolOutput)
		default:
			size += 40
		}
	}
	if size == 0 {
		size = 1
	}
	return size
}

// Boundary scoring. A cut before index i is cleanest at a user message,
// good after a completed tool result, and better after a pause.
const (
	scoreUserMessage   = 100
	scoreAfterToolEnd  = 50
	scoreLongGap       = 30
	scoreShortGap      = 10
	longGapThreshold   = 5 * time.Minute
	shortGapThreshold  = 1 * time.Minute
	windowLowFraction  = 0.8
	windowHighFraction = 1.3
)

// SelectSplitPoints returns the ordered indices where a transcript should
// be cut; each index i means the cut falls before message i. The returned
// list is empty when the whole sequence fits within target.
func SelectSplitPoints(msgs []session.Message, target int, est SizeEstimator) []int {
	if target <= 0 || len(msgs) == 0 {
		return nil
	}
	if est == nil {
		est = DefaultEstimator
	}

	sizes := make([]int, len(msgs))
	for i := range msgs {
		sizes[i] = est(&msgs[i])
	}

	var cuts []int
	start := 0
	for {
		rest := 0
		for i := start; i < len(msgs); i++ {
			rest += sizes[i]
		}
		if rest <= target {
			break
		}
		cut := selectOne(msgs, sizes, start, target)
		if cut <= start || cut >= len(msgs) {
			break
		}
		cuts = append(cuts, cut)
		start = cut
	}
	return cuts
}

// Ranges covers the message sequence exactly once with the selected cuts:
// ordered half-open [from, to) index pairs, no gaps, no overlaps.
func Ranges(msgs []session.Message, target int, est SizeEstimator) [][2]int {
	if len(msgs) == 0 {
		return nil
	}
	cuts := SelectSplitPoints(msgs, target, est)
	var out [][2]int
	start := 0
	for _, c := range cuts {
		out = append(out, [2]int{start, c})
		start = c
	}
	out = append(out, [2]int{start, len(msgs)})
	return out
}

// selectOne picks the best cut index for the part starting at start. The
// candidate window is [0.8*target, 1.3*target] accumulated size; when no
// boundary lands inside it, the index closest to target wins instead, so
// there is always a cut.
func selectOne(msgs []session.Message, sizes []int, start, target int) int {
	low := int(float64(target) * windowLowFraction)
	high := int(float64(target) * windowHighFraction)

	bestIdx := -1
	bestScore := 0
	closestIdx := -1
	closestDist := 0

	acc := 0
	for i := start; i < len(msgs); i++ {
		acc += sizes[i]
		cut := i + 1 // boundary after message i
		if cut >= len(msgs) {
			break
		}

		dist := acc - target
		if dist < 0 {
			dist = -dist
		}
		if closestIdx < 0 || dist < closestDist {
			closestIdx = cut
			closestDist = dist
		}

		if acc < low {
			continue
		}
		if acc > high {
			break
		}

		score := boundaryScore(msgs, cut)
		// small penalty for distance so closer-to-target wins ties
		score = score*1000 - dist
		if bestIdx < 0 || score > bestScore {
			bestIdx = cut
			bestScore = score
		}
	}

	if bestIdx >= 0 {
		return bestIdx
	}
	return closestIdx
}

func boundaryScore(msgs []session.Message, i int) int {
	score := 0
	if msgs[i].Role == format.RoleUser {
		score += scoreUserMessage
	}
	if msgs[i-1].HasToolResult() {
		score += scoreAfterToolEnd
	}
	if !msgs[i].Timestamp.IsZero() && !msgs[i-1].Timestamp.IsZero() {
		gap := msgs[i].Timestamp.Sub(msgs[i-1].Timestamp)
		switch {
		case gap > longGapThreshold:
			score += scoreLongGap
		case gap > shortGapThreshold:
			score += scoreShortGap
		}
	}
	return score
}
