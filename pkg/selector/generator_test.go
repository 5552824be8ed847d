package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcap/pkg/action"
	"flowcap/pkg/dom"
)

const generatorPage = `<!DOCTYPE html>
<html>
<body>
  <div id="app">
    <header class="top-bar">
      <nav class="nav-menu">
        <a id="login-btn" class="btn btn-primary" href="/login">Sign in</a>
      </nav>
    </header>
    <main>
      <form id="checkout" name="checkout">
        <input type="email" name="email" class="field">
        <input type="password" name="password" data-testid="pw-field">
        <button type="submit" aria-label="Submit order" class="btn">Pay now</button>
      </form>
      <div class="promo">
        <span id="react-48213" class="sc-a1b2c3d4e5">Flash sale</span>
      </div>
      <p class="long">This paragraph rambles on far past the fifty character boundary for exact text.</p>
      <ul class="menu">
        <li>One</li>
        <li>Two</li>
        <li id="pick-me">Three</li>
      </ul>
    </main>
  </div>
</body>
</html>`

func generatorFixture(t *testing.T) (*dom.Snapshot, *Generator) {
	t.Helper()
	snap, err := dom.Parse(generatorPage, "https://shop.test/checkout")
	require.NoError(t, err)
	return snap, NewGenerator(snap, 0)
}

func TestGenerate_StableID(t *testing.T) {
	snap, gen := generatorFixture(t)

	s := gen.Generate(snap.ByID("login-btn"))

	assert.Equal(t, "login-btn", s.ID)
	require.NotEmpty(t, s.Priority)
	assert.Equal(t, action.CandidateID, s.Priority[0])
	assert.Equal(t, "//*[@id='login-btn']", s.XPath)
	assert.Equal(t, "Sign in", s.Text)
}

func TestGenerate_DynamicIDRejected(t *testing.T) {
	snap, gen := generatorFixture(t)

	s := gen.Generate(snap.ByID("react-48213"))

	assert.Empty(t, s.ID)
	require.NotEmpty(t, s.Priority)
	assert.Equal(t, action.CandidateCSS, s.Priority[0])
	// The dynamic class is dropped too, leaving a bare tag fragment.
	assert.Equal(t, "div#app > main > div.promo > span", s.CSS)
	assert.Equal(t, "//span[1]", s.XPath)
}

func TestGenerate_CSSPath(t *testing.T) {
	snap, gen := generatorFixture(t)

	s := gen.Generate(snap.ByID("login-btn"))

	assert.Equal(t, "div#app > header.top-bar > nav.nav-menu > a.btn.btn-primary", s.CSS)
}

func TestGenerate_CSSDepthBound(t *testing.T) {
	snap, err := dom.Parse(generatorPage, "https://shop.test/checkout")
	require.NoError(t, err)
	gen := NewGenerator(snap, 2)

	s := gen.Generate(snap.ByID("login-btn"))

	assert.Equal(t, "nav.nav-menu > a.btn.btn-primary", s.CSS)
}

func TestGenerate_FormControls(t *testing.T) {
	snap, gen := generatorFixture(t)

	email := dom.FindFirst(snap.Root, func(n *dom.Node) bool {
		return dom.Attr(n, "name") == "email"
	})
	require.NotNil(t, email)

	s := gen.Generate(email)
	assert.Equal(t, "email", s.Name)
	assert.Equal(t, `div#app > main > form#checkout > input[type="email"].field`, s.CSS)
	assert.Equal(t, "//input[@name='email']", s.XPath)

	password := dom.FindFirst(snap.Root, func(n *dom.Node) bool {
		return dom.Attr(n, "name") == "password"
	})
	require.NotNil(t, password)

	s = gen.Generate(password)
	assert.Equal(t, "pw-field", s.DataTestID)
	assert.Equal(t, "//input[@data-testid='pw-field']", s.XPath)
	require.NotEmpty(t, s.Priority)
	assert.Equal(t, action.CandidateDataTestID, s.Priority[0])
}

func TestGenerate_AriaLabel(t *testing.T) {
	snap, gen := generatorFixture(t)

	btn := dom.FindFirst(snap.Root, func(n *dom.Node) bool {
		return dom.Tag(n) == "button"
	})
	require.NotNil(t, btn)

	s := gen.Generate(btn)
	assert.Equal(t, "Submit order", s.AriaLabel)
	assert.Equal(t, "Pay now", s.Text)
	require.NotEmpty(t, s.Priority)
	assert.Equal(t, action.CandidateAriaLabel, s.Priority[0])
}

func TestGenerate_LongTextTruncates(t *testing.T) {
	snap, gen := generatorFixture(t)

	para := dom.FindFirst(snap.Root, func(n *dom.Node) bool {
		return dom.Tag(n) == "p"
	})
	require.NotNil(t, para)

	s := gen.Generate(para)
	assert.Empty(t, s.Text)
	assert.Equal(t, "This paragraph rambles on far ", s.TextContains)
	assert.Len(t, []rune(s.TextContains), 30)
}

func TestGenerate_PositionAndSiblingIndex(t *testing.T) {
	snap, gen := generatorFixture(t)

	items := dom.FindAll(snap.Root, func(n *dom.Node) bool {
		return dom.Tag(n) == "li"
	})
	require.Len(t, items, 3)

	s := gen.Generate(items[1])
	assert.Equal(t, "ul.menu@1", s.Position)
	assert.Equal(t, "//li[2]", s.XPath)
}

func TestGenerate_AbsoluteXPath(t *testing.T) {
	snap, gen := generatorFixture(t)

	s := gen.Generate(snap.ByID("login-btn"))

	assert.Equal(t, "/html/body[1]/div[1]/header[1]/nav[1]/a[1]", s.XPathAbsolute)
}

func TestGenerate_NilNode(t *testing.T) {
	_, gen := generatorFixture(t)

	s := gen.Generate(nil)
	assert.True(t, s.Empty())
	assert.Empty(t, s.Priority)
}
