package recording

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcap/pkg/action"
)

func clickAt(ts int64) *action.Action {
	return &action.Action{
		Type:      action.TypeClick,
		Timestamp: ts,
		Selector:  (&action.SelectorStrategy{ID: "btn"}).RankPriority(),
		Click:     &action.ClickDetail{X: 1, Y: 1, Button: "left"},
	}
}

func TestNormalize_SortsAndRenumbers(t *testing.T) {
	actions := []*action.Action{clickAt(3000), clickAt(1000), clickAt(2000)}
	actions[0].ID = "act_007"
	actions[1].ID = "act_002"

	out := Normalize(actions)

	require.Len(t, out, 3)
	assert.Equal(t, []int64{1000, 2000, 3000}, []int64{out[0].Timestamp, out[1].Timestamp, out[2].Timestamp})
	assert.Equal(t, "act_001", out[0].ID)
	assert.Equal(t, "act_002", out[1].ID)
	assert.Equal(t, "act_003", out[2].ID)
}

func TestNormalize_StableForEqualTimestamps(t *testing.T) {
	first := clickAt(1000)
	second := clickAt(1000)
	second.Click.X = 99

	out := Normalize([]*action.Action{first, second})

	assert.Same(t, first, out[0])
	assert.Same(t, second, out[1])
}

func TestNew(t *testing.T) {
	start := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	end := start.Add(42 * time.Second)

	rec := New("checkout flow", "https://shop.test", Viewport{Width: 1280, Height: 800},
		"Mozilla/5.0", start, end, []*action.Action{clickAt(2000), clickAt(1000)})

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "2024-03-10T09:30:00.000Z", rec.StartTime)
	assert.Equal(t, "2024-03-10T09:30:42.000Z", rec.EndTime)
	assert.Equal(t, 42*time.Second, rec.Duration())
	require.Len(t, rec.Actions, 2)
	assert.Equal(t, "act_001", rec.Actions[0].ID)
	assert.Equal(t, int64(1000), rec.Actions[0].Timestamp)
}

func TestExportRoundTrip(t *testing.T) {
	rec := New("roundtrip", "https://shop.test", Viewport{Width: 800, Height: 600},
		"", time.Unix(1700000000, 0), time.Unix(1700000060, 0), []*action.Action{clickAt(1000)})

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			data, err := Export(rec, format)
			require.NoError(t, err)

			back, err := Import(data, format)
			require.NoError(t, err)
			assert.Equal(t, rec.ID, back.ID)
			assert.Equal(t, rec.TestName, back.TestName)
			require.Len(t, back.Actions, 1)
			assert.Equal(t, "act_001", back.Actions[0].ID)
			assert.Equal(t, "btn", back.Actions[0].Selector.ID)
		})
	}

	_, err := Export(rec, "xml")
	assert.Error(t, err)
}
