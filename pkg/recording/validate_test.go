package recording

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcap/pkg/action"
)

func validRecording(t *testing.T) *Recording {
	t.Helper()
	start := time.Unix(1700000000, 0)
	rec := New("login flow", "https://app.test", Viewport{Width: 1280, Height: 800},
		"Mozilla/5.0", start, start.Add(time.Minute), []*action.Action{
			clickAt(1000),
			{
				Type:      action.TypeInput,
				Timestamp: 2000,
				Selector:  (&action.SelectorStrategy{Name: "user"}).RankPriority(),
				Input:     &action.InputDetail{Value: "jdoe"},
			},
		})
	require.NoError(t, Validate(rec))
	return rec
}

func fieldNames(err error) []string {
	verrs, ok := err.(ValidationErrors)
	if !ok {
		return nil
	}
	var names []string
	for _, e := range verrs {
		names = append(names, e.Field)
	}
	return names
}

func TestValidate_EmptyRecordingPasses(t *testing.T) {
	start := time.Unix(1700000000, 0)
	rec := New("empty run", "https://app.test", Viewport{Width: 1024, Height: 768},
		"", start, start, []*action.Action{})

	assert.NoError(t, Validate(rec))
	assert.Empty(t, rec.Actions)
}

func TestValidate_NonPositiveViewport(t *testing.T) {
	rec := validRecording(t)
	rec.Viewport.Width = 0

	err := Validate(rec)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "recording.viewport")

	rec.Viewport = Viewport{Width: -5, Height: 600}
	err = Validate(rec)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "recording.viewport")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	rec := validRecording(t)
	rec.TestName = ""
	rec.StartTime = "yesterday-ish"
	rec.Viewport.Height = 0

	err := Validate(rec)
	require.Error(t, err)

	names := fieldNames(err)
	assert.Contains(t, names, "recording.test_name")
	assert.Contains(t, names, "recording.start_time")
	assert.Contains(t, names, "recording.viewport")
	assert.Contains(t, err.Error(), "more errors")
}

func TestValidate_ActionIDContiguity(t *testing.T) {
	rec := validRecording(t)
	rec.Actions[1].ID = "act_005"

	err := Validate(rec)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "recording.actions[1].id")
}

func TestValidate_TimestampOrder(t *testing.T) {
	rec := validRecording(t)
	rec.Actions[0].Timestamp = 9999

	err := Validate(rec)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "recording.actions[1].timestamp")
}

func TestValidate_SelectorRules(t *testing.T) {
	rec := validRecording(t)
	rec.Actions[0].Selector = nil

	err := Validate(rec)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "recording.actions[0].selector")

	rec = validRecording(t)
	rec.Actions[0].Selector.Priority = append(rec.Actions[0].Selector.Priority, action.CandidateXPath)
	err = Validate(rec)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "recording.actions[0].selector.priority")
}

func TestValidate_ScrollNeedsNoSelector(t *testing.T) {
	start := time.Unix(1700000000, 0)
	rec := New("scroll only", "https://app.test", Viewport{Width: 800, Height: 600},
		"", start, start, []*action.Action{
			{Type: action.TypeScroll, Timestamp: 1500, Scroll: &action.ScrollDetail{ScrollY: 300}},
		})

	assert.NoError(t, Validate(rec))
}

func TestValidate_MissingPayload(t *testing.T) {
	rec := validRecording(t)
	rec.Actions[1].Input = nil

	err := Validate(rec)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "recording.actions[1].input")
}

func TestValidate_UnknownType(t *testing.T) {
	rec := validRecording(t)
	rec.Actions[0].Type = "hover"

	err := Validate(rec)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "recording.actions[0].type")
}
