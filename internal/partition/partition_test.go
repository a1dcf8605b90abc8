package partition

import (
	"testing"
	"time"

	"github.com/nmatte/aitally/internal/format"
	"github.com/nmatte/aitally/internal/session"
)

// unitEstimator charges each message the size stored in its text.
func sizedMessages(roles []format.Role, sizes []int) ([]session.Message, SizeEstimator) {
	msgs := make([]session.Message, len(sizes))
	for i := range sizes {
		role := format.RoleAssistant
		if roles != nil {
			role = roles[i]
		}
		msgs[i] = session.Message{
			Role:   role,
			Blocks: []format.Block{{Type: format.BlockText, Text: "x"}},
		}
	}
	est := func(m *session.Message) int {
		for i := range msgs {
			if &msgs[i] == m {
				return sizes[i]
			}
		}
		return 1
	}
	return msgs, est
}

func TestSelectSplitPointsFits(t *testing.T) {
	msgs, est := sizedMessages(nil, []int{10, 10, 10})
	cuts := SelectSplitPoints(msgs, 100, est)
	if len(cuts) != 0 {
		t.Errorf("cuts = %v, want none when everything fits", cuts)
	}
}

func TestSelectSplitPointsPrefersUserBoundary(t *testing.T) {
	// three candidate boundaries fall inside the window; the one landing on
	// a user message wins even though a neighbor sits closer to target
	roles := []format.Role{
		format.RoleUser,      // 0
		format.RoleAssistant, // 1
		format.RoleAssistant, // 2
		format.RoleAssistant, // 3
		format.RoleAssistant, // 4
		format.RoleAssistant, // 5 boundary candidate, acc 25
		format.RoleUser,      // 6 boundary candidate, acc 30
		format.RoleAssistant, // 7 boundary candidate, acc 35
		format.RoleAssistant,
		format.RoleAssistant,
		format.RoleAssistant,
		format.RoleAssistant,
	}
	sizes := []int{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5}
	msgs, est := sizedMessages(roles, sizes)

	cuts := SelectSplitPoints(msgs, 30, est)
	if len(cuts) == 0 {
		t.Fatal("no cuts selected")
	}
	if cuts[0] != 6 {
		t.Errorf("first cut = %d, want 6 (user boundary)", cuts[0])
	}
}

func TestSelectSplitPointsFallbackOutsideWindow(t *testing.T) {
	// the first message alone blows past the window; the closest index is
	// taken so a cut always exists
	msgs, est := sizedMessages(nil, []int{100, 10})
	cuts := SelectSplitPoints(msgs, 30, est)
	if len(cuts) != 1 || cuts[0] != 1 {
		t.Errorf("cuts = %v, want [1]", cuts)
	}
}

func TestSelectSplitPointsOversizedTail(t *testing.T) {
	// an oversized final message can never satisfy the target; the selector
	// must still terminate
	msgs, est := sizedMessages(nil, []int{10, 100})
	cuts := SelectSplitPoints(msgs, 30, est)
	if len(cuts) != 1 || cuts[0] != 1 {
		t.Errorf("cuts = %v, want [1]", cuts)
	}
}

func TestRangesCoverExactlyOnce(t *testing.T) {
	msgs, est := sizedMessages(nil, []int{8, 8, 8, 8, 8, 8, 8, 8, 8, 8})
	ranges := Ranges(msgs, 25, est)
	if len(ranges) < 2 {
		t.Fatalf("ranges = %v, want multiple parts", ranges)
	}

	if ranges[0][0] != 0 {
		t.Errorf("first range starts at %d", ranges[0][0])
	}
	if ranges[len(ranges)-1][1] != len(msgs) {
		t.Errorf("last range ends at %d, want %d", ranges[len(ranges)-1][1], len(msgs))
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i][0] != ranges[i-1][1] {
			t.Errorf("gap/overlap between range %d and %d: %v", i-1, i, ranges)
		}
	}
	for _, r := range ranges {
		if r[0] >= r[1] {
			t.Errorf("empty range %v", r)
		}
	}
}

func TestBoundaryScoreGaps(t *testing.T) {
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	msgs := []session.Message{
		{Role: format.RoleAssistant, Timestamp: base},
		{Role: format.RoleAssistant, Timestamp: base.Add(6 * time.Minute)},
		{Role: format.RoleAssistant, Timestamp: base.Add(6*time.Minute + 90*time.Second)},
		{Role: format.RoleAssistant, Timestamp: base.Add(6*time.Minute + 100*time.Second)},
	}

	if got := boundaryScore(msgs, 1); got != scoreLongGap {
		t.Errorf("long gap score = %d, want %d", got, scoreLongGap)
	}
	if got := boundaryScore(msgs, 2); got != scoreShortGap {
		t.Errorf("short gap score = %d, want %d", got, scoreShortGap)
	}
	if got := boundaryScore(msgs, 3); got != 0 {
		t.Errorf("no-gap score = %d, want 0", got)
	}
}

func TestDefaultEstimator(t *testing.T) {
	m := session.Message{Blocks: []format.Block{
		{Type: format.BlockText, Text: "hello"},
		{Type: format.BlockToolUse, ToolInput: `{"a":1}`},
		{Type: format.BlockToolResult, ToolOutput: "ok"},
	}}
	got := DefaultEstimator(&m)
	want := 5 + 80 + 7 + 40 + 2
	if got != want {
		t.Errorf("size = %d, want %d", got, want)
	}

	empty := session.Message{}
	if DefaultEstimator(&empty) != 1 {
		t.Error("empty message should cost at least 1")
	}
}
