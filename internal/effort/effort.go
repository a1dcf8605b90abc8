// Package effort computes how long a conversation actually took. Three
// measures are reported for a logical conversation (a main session plus
// its spawned subordinate sessions): wall-clock span, per-session span
// sums, and gap-aware work-period time over the merged timeline.
package effort

import (
	"sort"
	"time"

	"github.com/nmatte/aitally/internal/session"
)

// DefaultGap is the inactivity threshold that closes a work period.
const DefaultGap = 5 * time.Minute

// Period is one maximal interval of activity: consecutive message
// timestamps inside it are separated by less than the gap threshold.
// Recomputed on demand, never persisted.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Result holds the three effort measures for one session group.
//
// Calendar counts the wall-clock span once regardless of overlap. Simple
// sums per-session spans and therefore double-counts overlapping
// subordinate activity. WorkPeriod collapses all sessions into one
// timeline and drops inactivity gaps, so WorkPeriod <= Simple and
// WorkPeriod <= Calendar always hold.
type Result struct {
	Calendar   time.Duration
	Simple     time.Duration
	WorkPeriod time.Duration
	Periods    []Period
}

// Compute derives the effort measures for a group of sessions sharing a
// logical conversation. Sessions without timestamped messages contribute
// nothing; a session with a single timestamped message contributes zero
// duration but still anchors a work-period boundary.
func Compute(sessions []*session.Session, gap time.Duration) Result {
	if gap <= 0 {
		gap = DefaultGap
	}

	var res Result
	var timeline []time.Time

	for _, s := range sessions {
		if s == nil {
			continue
		}
		var first, last time.Time
		for _, m := range s.Messages {
			if m.Timestamp.IsZero() {
				continue
			}
			timeline = append(timeline, m.Timestamp)
			if first.IsZero() || m.Timestamp.Before(first) {
				first = m.Timestamp
			}
			if m.Timestamp.After(last) {
				last = m.Timestamp
			}
		}
		if !first.IsZero() {
			res.Simple += last.Sub(first)
		}
	}

	if len(timeline) == 0 {
		return res
	}

	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })

	res.Calendar = timeline[len(timeline)-1].Sub(timeline[0])

	cur := Period{Start: timeline[0], End: timeline[0]}
	for _, ts := range timeline[1:] {
		if ts.Sub(cur.End) > gap {
			res.Periods = append(res.Periods, cur)
			cur = Period{Start: ts, End: ts}
			continue
		}
		cur.End = ts
	}
	res.Periods = append(res.Periods, cur)

	for _, p := range res.Periods {
		res.WorkPeriod += p.Duration()
	}
	return res
}
