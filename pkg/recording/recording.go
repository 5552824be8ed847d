// Package recording defines the finished artifact a session produces:
// an ordered, validated sequence of captured actions plus the metadata
// a replay engine needs to reproduce the run.
package recording

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"flowcap/pkg/action"
)

// timeLayout renders ISO-8601 with millisecond precision
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Viewport is the page's visible size when the recording was made
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Recording is the exported artifact. Actions are sorted ascending by
// timestamp and their ids are contiguous from act_001.
type Recording struct {
	ID        string           `json:"id"`
	TestName  string           `json:"test_name"`
	URL       string           `json:"url"`
	StartTime string           `json:"start_time"`
	EndTime   string           `json:"end_time"`
	Viewport  Viewport         `json:"viewport"`
	UserAgent string           `json:"user_agent,omitempty"`
	Actions   []*action.Action `json:"actions"`
}

// New assembles a recording with a fresh identity. The action list is
// normalized: sorted by timestamp and renumbered so ids stay contiguous
// after any merge-time drops.
func New(testName, url string, vp Viewport, userAgent string, start, end time.Time, actions []*action.Action) *Recording {
	return &Recording{
		ID:        uuid.NewString(),
		TestName:  testName,
		URL:       url,
		StartTime: FormatTime(start),
		EndTime:   FormatTime(end),
		Viewport:  vp,
		UserAgent: userAgent,
		Actions:   Normalize(actions),
	}
}

// FormatTime renders a timestamp the way recordings store them
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime accepts any RFC3339 timestamp, with or without fractional
// seconds
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Normalize sorts actions by timestamp (stable, so same-millisecond
// actions keep their sync order) and reassigns contiguous ids starting
// at act_001.
func Normalize(actions []*action.Action) []*action.Action {
	out := make([]*action.Action, len(actions))
	copy(out, actions)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	for i, a := range out {
		a.ID = action.FormatID(i + 1)
	}
	return out
}

// Duration is the recorded wall-clock span, zero when timestamps are
// missing or malformed
func (r *Recording) Duration() time.Duration {
	start, err := ParseTime(r.StartTime)
	if err != nil {
		return 0
	}
	end, err := ParseTime(r.EndTime)
	if err != nil {
		return 0
	}
	return end.Sub(start)
}

// ActionCount is a nil-safe length accessor
func (r *Recording) ActionCount() int {
	if r == nil {
		return 0
	}
	return len(r.Actions)
}
