// Package simulate produces synthetic recordings for exercising the
// validation, storage and export pipeline without a browser.
package simulate

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"flowcap/pkg/action"
	"flowcap/pkg/config"
	"flowcap/pkg/recording"
	"flowcap/pkg/sanitize"
)

const defaultActions = 12

var (
	scenarioNames = []string{"login flow", "checkout", "signup", "search and filter", "profile update"}
	buttonIDs     = []string{"submit-button", "add-to-cart", "save", "next-step", "confirm"}
	dataTestIDs   = []string{"checkout-button", "nav-cart", "remove-item", "apply-coupon"}
	linkTexts     = []string{"View cart", "Continue shopping", "Account", "Help"}
	hotkeys       = []string{"Enter", "Tab", "Escape", "ArrowDown"}
	formIDs       = []string{"login-form", "checkout-form", "search-form"}
	pathSegments  = []string{"cart", "checkout", "products", "account", "orders"}
	navTriggers   = []string{"link", "submit", "script", "history"}

	viewports = []recording.Viewport{
		{Width: 1920, Height: 1080},
		{Width: 1440, Height: 900},
		{Width: 1280, Height: 800},
		{Width: 390, Height: 844},
	}
)

// inputProfiles describe the form fields the simulated user types into.
// The card and password profiles exist so generated recordings carry
// masked values, the same as live capture.
var inputProfiles = []struct {
	id        string
	name      string
	inputType string
}{
	{"email", "email", "email"},
	{"username", "username", "text"},
	{"password", "password", "password"},
	{"card-number", "cardNumber", "text"},
	{"search", "q", "search"},
	{"comment", "comment", "text"},
}

var selectProfiles = []struct {
	id      string
	options []string
}{
	{"country", []string{"US", "DE", "JP", "BR"}},
	{"quantity", []string{"1", "2", "3", "5"}},
	{"sort-order", []string{"newest", "price-asc", "price-desc"}},
}

// Generator builds synthetic but structurally valid recordings. The
// same seed always yields the same action sequence.
type Generator struct {
	faker  *gofakeit.Faker
	seed   int64
	locale string
	now    func() time.Time
}

// New creates a Generator from cfg. A zero seed picks a time-based one.
func New(cfg config.SimulateConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	locale := cfg.Locale
	if locale == "" {
		locale = "en"
	}

	return &Generator{
		faker: gofakeit.New(seed),
		seed:  seed,
		// gofakeit does not switch locale after initialization; the
		// value is kept for the run report.
		locale: locale,
		now:    time.Now,
	}
}

// Seed returns the seed in use, so a run can be reproduced
func (g *Generator) Seed() int64 { return g.seed }

// Locale returns the configured locale tag
func (g *Generator) Locale() string { return g.locale }

// walk is the state of one simulated browsing session
type walk struct {
	origin  string
	url     string
	ts      int64 // milliseconds since the recording started
	scrollY int
	vp      recording.Viewport
}

// Recording generates one recording of n actions. An empty testName
// picks a plausible one.
func (g *Generator) Recording(testName string, n int) *recording.Recording {
	if n <= 0 {
		n = defaultActions
	}
	if testName == "" {
		testName = g.pick(scenarioNames)
	}

	w := &walk{
		origin: "https://" + strings.ToLower(g.faker.DomainName()),
		vp:     viewports[g.faker.IntRange(0, len(viewports)-1)],
	}
	w.url = w.origin + "/"
	startURL := w.url

	var actions []*action.Action
	for len(actions) < n {
		actions = append(actions, g.step(w)...)
	}
	actions = actions[:n]

	end := g.now()
	start := end.Add(-time.Duration(w.ts+800) * time.Millisecond)
	base := start.UnixMilli()
	for _, a := range actions {
		a.Timestamp += base
	}

	return recording.New(testName, startURL, w.vp, g.faker.UserAgent(), start, end, actions)
}

func (g *Generator) step(w *walk) []*action.Action {
	roll := g.faker.IntRange(1, 100)
	switch {
	case roll <= 30:
		return []*action.Action{g.click(w)}
	case roll <= 52:
		return []*action.Action{g.input(w)}
	case roll <= 62:
		return []*action.Action{g.selectOption(w)}
	case roll <= 72:
		return []*action.Action{g.scroll(w)}
	case roll <= 80:
		return []*action.Action{g.keypress(w)}
	case roll <= 88:
		return []*action.Action{g.submit(w)}
	case roll <= 94:
		return []*action.Action{g.navigate(w)}
	default:
		return g.doubleClick(w)
	}
}

func (g *Generator) click(w *walk) *action.Action {
	return &action.Action{
		Type:      action.TypeClick,
		Timestamp: g.tick(w),
		URL:       w.url,
		Selector:  g.clickSelector(),
		Click:     g.pointer(w),
	}
}

// doubleClick emits the whole gesture: the plain click arrives first,
// the fold into doubleclick follows inside the dwell window.
func (g *Generator) doubleClick(w *walk) []*action.Action {
	first := g.click(w)

	w.ts += int64(g.faker.IntRange(80, 400))
	click := *first.Click
	sel := *first.Selector
	sel.Priority = append([]string(nil), first.Selector.Priority...)

	second := &action.Action{
		Type:      action.TypeDoubleClick,
		Timestamp: w.ts,
		URL:       w.url,
		Selector:  &sel,
		Click:     &click,
	}
	return []*action.Action{first, second}
}

func (g *Generator) input(w *walk) *action.Action {
	p := inputProfiles[g.faker.IntRange(0, len(inputProfiles)-1)]

	var value string
	switch p.id {
	case "email":
		value = g.faker.Email()
	case "username":
		value = g.faker.Username()
	case "password":
		value = g.faker.Password(true, true, true, false, false, 12)
	case "card-number":
		value = g.faker.CreditCardNumber(nil)
	case "search":
		value = g.faker.Word()
	default:
		value = g.faker.Sentence(6)
	}

	a := &action.Action{
		Type:      action.TypeInput,
		Timestamp: g.tick(w),
		URL:       w.url,
		Selector: (&action.SelectorStrategy{
			ID:   p.id,
			Name: p.name,
			CSS:  "#" + p.id,
		}).RankPriority(),
		Input: &action.InputDetail{
			Value:         value,
			InputType:     p.inputType,
			FieldName:     p.name,
			FieldID:       p.id,
			TypingDelayMs: g.faker.IntRange(40, 220),
		},
	}

	// Synthetic values run through the same scrubbing as live capture.
	sanitize.Apply(a)
	return a
}

func (g *Generator) selectOption(w *walk) *action.Action {
	p := selectProfiles[g.faker.IntRange(0, len(selectProfiles)-1)]
	value := g.pick(p.options)

	return &action.Action{
		Type:      action.TypeSelect,
		Timestamp: g.tick(w),
		URL:       w.url,
		Selector: (&action.SelectorStrategy{
			ID:   p.id,
			Name: p.id,
			CSS:  "select#" + p.id,
		}).RankPriority(),
		Select: &action.SelectDetail{
			Value: value,
			Text:  strings.ToUpper(value[:1]) + value[1:],
		},
	}
}

func (g *Generator) scroll(w *walk) *action.Action {
	w.scrollY += g.faker.IntRange(120, 900)
	return &action.Action{
		Type:      action.TypeScroll,
		Timestamp: g.tick(w),
		URL:       w.url,
		Scroll:    &action.ScrollDetail{ScrollY: w.scrollY},
	}
}

func (g *Generator) keypress(w *walk) *action.Action {
	return &action.Action{
		Type:      action.TypeKeypress,
		Timestamp: g.tick(w),
		URL:       w.url,
		Keypress:  &action.KeypressDetail{Key: g.pick(hotkeys)},
	}
}

func (g *Generator) submit(w *walk) *action.Action {
	form := g.pick(formIDs)
	return &action.Action{
		Type:      action.TypeSubmit,
		Timestamp: g.tick(w),
		URL:       w.url,
		Selector: (&action.SelectorStrategy{
			ID:  form,
			CSS: "form#" + form,
		}).RankPriority(),
		Submit: &action.SubmitDetail{
			FormID:     form,
			FormAction: w.origin + "/" + g.pick(pathSegments),
		},
	}
}

func (g *Generator) navigate(w *walk) *action.Action {
	from := w.url
	w.url = w.origin + "/" + g.pick(pathSegments)
	w.scrollY = 0

	return &action.Action{
		Type:      action.TypeNavigation,
		Timestamp: g.tick(w),
		URL:       from,
		Navigation: &action.NavigationDetail{
			FromURL: from,
			ToURL:   w.url,
			Trigger: g.pick(navTriggers),
		},
	}
}

func (g *Generator) clickSelector() *action.SelectorStrategy {
	switch g.faker.IntRange(0, 2) {
	case 0:
		id := g.pick(buttonIDs)
		return (&action.SelectorStrategy{
			ID:  id,
			CSS: "#" + id,
		}).RankPriority()
	case 1:
		testID := g.pick(dataTestIDs)
		return (&action.SelectorStrategy{
			DataTestID: testID,
			CSS:        fmt.Sprintf("[data-testid=%q]", testID),
		}).RankPriority()
	default:
		text := g.pick(linkTexts)
		return (&action.SelectorStrategy{
			Text:  text,
			CSS:   "nav a",
			XPath: fmt.Sprintf("//a[text()=%q]", text),
		}).RankPriority()
	}
}

func (g *Generator) pointer(w *walk) *action.ClickDetail {
	return &action.ClickDetail{
		X:      g.faker.IntRange(8, w.vp.Width-8),
		Y:      g.faker.IntRange(8, w.vp.Height-8),
		Button: "left",
	}
}

// tick advances the walk clock by one think-time gap
func (g *Generator) tick(w *walk) int64 {
	w.ts += int64(g.faker.IntRange(250, 2400))
	return w.ts
}

func (g *Generator) pick(options []string) string {
	return options[g.faker.IntRange(0, len(options)-1)]
}
