package simulate

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcap/pkg/action"
	"flowcap/pkg/config"
	"flowcap/pkg/recording"
)

func testWalk() *walk {
	w := &walk{
		origin: "https://shop.example",
		vp:     recording.Viewport{Width: 1280, Height: 800},
	}
	w.url = w.origin + "/"
	return w
}

func TestRecording_IsStructurallyValid(t *testing.T) {
	g := New(config.SimulateConfig{Seed: 42})
	rec := g.Recording("synthetic checkout", 25)

	require.NoError(t, recording.Validate(rec))
	require.Len(t, rec.Actions, 25)

	assert.Equal(t, "synthetic checkout", rec.TestName)
	assert.True(t, strings.HasPrefix(rec.URL, "https://"))
	assert.NotEmpty(t, rec.UserAgent)

	assert.Equal(t, "act_001", rec.Actions[0].ID)
	assert.Equal(t, "act_025", rec.Actions[24].ID)

	start, err := recording.ParseTime(rec.StartTime)
	require.NoError(t, err)
	assert.Greater(t, rec.Actions[0].Timestamp, start.UnixMilli())
}

func TestRecording_SameSeedSameActions(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	generate := func() *recording.Recording {
		g := New(config.SimulateConfig{Seed: 7})
		g.now = func() time.Time { return fixed }
		return g.Recording("replay", 30)
	}

	one, two := generate(), generate()

	a, err := json.Marshal(one.Actions)
	require.NoError(t, err)
	b, err := json.Marshal(two.Actions)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	assert.Equal(t, one.URL, two.URL)
	assert.Equal(t, one.UserAgent, two.UserAgent)
	assert.Equal(t, one.Viewport, two.Viewport)
}

func TestRecording_Defaults(t *testing.T) {
	g := New(config.SimulateConfig{Seed: 3})
	rec := g.Recording("", 0)

	assert.Len(t, rec.Actions, defaultActions)
	assert.Contains(t, scenarioNames, rec.TestName)
}

func TestNew_ZeroSeedPicksOne(t *testing.T) {
	g := New(config.SimulateConfig{})
	assert.NotZero(t, g.Seed())
	assert.Equal(t, "en", g.Locale())
}

func TestInput_SensitiveValuesAreMasked(t *testing.T) {
	g := New(config.SimulateConfig{Seed: 11})
	w := testWalk()

	cardShape := regexp.MustCompile(`^\*+\d{4}$`)
	seen := map[string]int{}

	for i := 0; i < 120; i++ {
		a := g.input(w)
		require.NotNil(t, a.Input)
		seen[a.Input.FieldID]++

		switch a.Input.FieldID {
		case "password":
			assert.True(t, a.Input.Sensitive)
			assert.Equal(t, "", strings.Trim(a.Input.Value, "•"))
		case "card-number":
			assert.True(t, a.Input.Sensitive)
			assert.Regexp(t, cardShape, a.Input.Value)
		case "email":
			assert.Contains(t, a.Input.Value, strings.Repeat("•", 8)+"@")
		default:
			assert.False(t, a.Input.Sensitive)
			assert.NotContains(t, a.Input.Value, "•")
		}
	}

	// Every profile shows up over this many draws.
	assert.Positive(t, seen["password"])
	assert.Positive(t, seen["card-number"])
	assert.Positive(t, seen["email"])
}

func TestDoubleClick_EmitsTheWholeGesture(t *testing.T) {
	g := New(config.SimulateConfig{Seed: 5})
	w := testWalk()

	pair := g.doubleClick(w)
	require.Len(t, pair, 2)

	first, second := pair[0], pair[1]
	assert.Equal(t, action.TypeClick, first.Type)
	assert.Equal(t, action.TypeDoubleClick, second.Type)

	delta := second.Timestamp - first.Timestamp
	assert.Greater(t, delta, int64(0))
	assert.LessOrEqual(t, delta, int64(500))

	assert.Equal(t, first.Selector.Fingerprint(), second.Selector.Fingerprint())
	require.NotNil(t, second.Click)
	assert.Equal(t, first.Click.X, second.Click.X)
}

func TestWalk_NavigationMovesTheSession(t *testing.T) {
	g := New(config.SimulateConfig{Seed: 9})
	w := testWalk()
	w.scrollY = 300

	a := g.navigate(w)

	require.NotNil(t, a.Navigation)
	assert.Equal(t, "https://shop.example/", a.Navigation.FromURL)
	assert.Equal(t, w.url, a.Navigation.ToURL)
	assert.NotEqual(t, a.Navigation.FromURL, a.Navigation.ToURL)
	assert.Contains(t, navTriggers, a.Navigation.Trigger)

	// Scroll position resets with the fresh document.
	assert.Zero(t, w.scrollY)
}

func TestTick_TimestampsAreStrictlyIncreasing(t *testing.T) {
	g := New(config.SimulateConfig{Seed: 13})
	w := testWalk()

	last := int64(0)
	for i := 0; i < 50; i++ {
		ts := g.tick(w)
		assert.Greater(t, ts, last)
		last = ts
	}
}
