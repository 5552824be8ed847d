package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcap/pkg/action"
	"flowcap/pkg/dom"
)

const resolvePage = `<!DOCTYPE html>
<html>
<body>
  <div id="panel">
    <button class="save-btn"><span>Save</span></button>
  </div>
  <ul class="menu">
    <li>Home</li>
    <li>Docs</li>
    <li>About</li>
  </ul>
  <p>alpha</p>
  <p>omega</p>
</body>
</html>`

func resolveFixture(t *testing.T) *dom.Snapshot {
	t.Helper()
	snap, err := dom.Parse(resolvePage, "https://shop.test/")
	require.NoError(t, err)
	return snap
}

func TestResolve_RelativeXPath(t *testing.T) {
	snap := resolveFixture(t)

	s := (&action.SelectorStrategy{XPath: "//*[@id='panel']"}).RankPriority()
	n := Resolve(snap, s)

	require.NotNil(t, n)
	assert.Same(t, snap.ByID("panel"), n)
}

func TestResolve_AbsoluteXPath(t *testing.T) {
	snap := resolveFixture(t)

	s := (&action.SelectorStrategy{XPathAbsolute: "/html/body[1]/ul[1]/li[2]"}).RankPriority()
	n := Resolve(snap, s)

	require.NotNil(t, n)
	assert.Equal(t, "Docs", dom.Text(n))
}

func TestResolve_TextPrefersDeepestMatch(t *testing.T) {
	snap := resolveFixture(t)

	// Both the button and its span flatten to "Save"; the span wins
	// because the button encloses it.
	s := (&action.SelectorStrategy{Text: "Save"}).RankPriority()
	n := Resolve(snap, s)

	require.NotNil(t, n)
	assert.Equal(t, "span", dom.Tag(n))
}

func TestResolve_TextAmbiguous(t *testing.T) {
	snap := resolveFixture(t)

	s := (&action.SelectorStrategy{TextContains: "o"}).RankPriority()
	assert.Nil(t, Resolve(snap, s))
}

func TestResolve_Position(t *testing.T) {
	snap := resolveFixture(t)

	s := (&action.SelectorStrategy{Position: "ul.menu@2"}).RankPriority()
	n := Resolve(snap, s)

	require.NotNil(t, n)
	assert.Equal(t, "About", dom.Text(n))
}

func TestResolve_FallsThroughPriority(t *testing.T) {
	snap := resolveFixture(t)

	s := (&action.SelectorStrategy{
		ID:  "gone-after-redeploy",
		CSS: "div#panel > button.save-btn",
	}).RankPriority()
	n := Resolve(snap, s)

	require.NotNil(t, n)
	assert.Equal(t, "button", dom.Tag(n))
}

func TestResolve_NothingMatches(t *testing.T) {
	snap := resolveFixture(t)

	s := (&action.SelectorStrategy{
		ID:       "missing",
		Position: "ol.nope@0",
	}).RankPriority()

	assert.Nil(t, Resolve(snap, s))
	assert.Nil(t, Resolve(nil, s))
	assert.Nil(t, Resolve(snap, nil))
}
