// Package capture turns raw page events into semantic actions. One
// engine instance serves exactly one page load: navigation destroys it
// and the next page gets a fresh one, so nothing in here survives as
// authoritative state. The session coordinator owns the durable truth.
package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"flowcap/pkg/action"
	"flowcap/pkg/classify"
	"flowcap/pkg/dom"
	"flowcap/pkg/selector"
)

// Phase mirrors the coordinator's view of the session. The engine only
// consults it going forward: pausing never cancels an in-flight emit.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhasePaused    Phase = "paused"
)

// Reporter delivers actions to the session coordinator
type Reporter interface {
	SyncAction(ctx context.Context, a *action.Action) error
}

// Config tunes the engine's coalescing windows and target resolution
type Config struct {
	// InputIdle is the quiet gap that closes a typing burst.
	InputIdle time.Duration
	// ScrollIdle is the quiet gap that closes a scroll burst.
	ScrollIdle time.Duration
	// DoubleClickWindow folds a repeated same-target click.
	DoubleClickWindow time.Duration
	// MaxAncestorHops bounds the interactive-target walk upward.
	MaxAncestorHops int
	// SelectorDepth bounds CSS selector ancestor depth.
	SelectorDepth int
	// IndicatorID marks the recording indicator's container; events
	// originating inside it are never captured.
	IndicatorID string
}

// DefaultIndicatorID is the id of the on-page recording indicator
const DefaultIndicatorID = "flowcap-indicator"

const syncTimeout = 3 * time.Second

// DefaultConfig returns the standard coalescing windows
func DefaultConfig() Config {
	return Config{
		InputIdle:         500 * time.Millisecond,
		ScrollIdle:        200 * time.Millisecond,
		DoubleClickWindow: 500 * time.Millisecond,
		MaxAncestorHops:   5,
		SelectorDepth:     selector.DefaultMaxCSSDepth,
		IndicatorID:       DefaultIndicatorID,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InputIdle <= 0 {
		c.InputIdle = d.InputIdle
	}
	if c.ScrollIdle <= 0 {
		c.ScrollIdle = d.ScrollIdle
	}
	if c.DoubleClickWindow <= 0 {
		c.DoubleClickWindow = d.DoubleClickWindow
	}
	if c.MaxAncestorHops <= 0 {
		c.MaxAncestorHops = d.MaxAncestorHops
	}
	if c.SelectorDepth <= 0 {
		c.SelectorDepth = d.SelectorDepth
	}
	if c.IndicatorID == "" {
		c.IndicatorID = d.IndicatorID
	}
	return c
}

// Engine consumes raw events for a single page load
type Engine interface {
	// SetPhase applies the coordinator's current phase, queried fresh
	// after every page boot.
	SetPhase(p Phase)
	Phase() Phase

	// OnClick handles a pointer press. The returned flag is true when
	// the click triggers navigation and was therefore reported
	// synchronously: the caller must hold the navigation until this
	// returns, then re-trigger it.
	OnClick(ctx context.Context, ev ClickEvent) (bool, error)
	OnInput(ev InputEvent)
	OnKeypress(ctx context.Context, ev KeyEvent)
	OnScroll(ev ScrollEvent)
	OnSelect(ctx context.Context, ev SelectEvent)
	OnSubmit(ctx context.Context, ev SubmitEvent) (bool, error)

	// SaveCurrentState flushes pending coalesced events and returns
	// the engine's local view of everything it emitted this page load.
	SaveCurrentState(ctx context.Context) []*action.Action
}

// DefaultEngine implements Engine for one DOM snapshot
type DefaultEngine struct {
	mu sync.RWMutex

	snap       *dom.Snapshot
	reporter   Reporter
	classifier *classify.Classifier
	generator  *selector.Generator
	cfg        Config
	logger     *zap.Logger
	now        func() int64

	phase   Phase
	actions []*action.Action

	lastClickNode *dom.Node
	lastClickAt   int64

	inputDeb      debounce
	pendingInput  *pendingInput
	scrollDeb     debounce
	pendingScroll *pendingScroll
}

type pendingInput struct {
	target     *dom.Node
	value      string
	first      int64
	last       int64
	keystrokes int
}

type pendingScroll struct {
	x, y int
	last int64
}

// NewEngine builds an engine for one page snapshot. A nil logger is
// replaced with a no-op one.
func NewEngine(snap *dom.Snapshot, reporter Reporter, logger *zap.Logger, cfg Config) *DefaultEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &DefaultEngine{
		snap:       snap,
		reporter:   reporter,
		classifier: classify.New(),
		generator:  selector.NewGenerator(snap, cfg.SelectorDepth),
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "capture_engine")),
		now:        func() int64 { return time.Now().UnixMilli() },
		phase:      PhaseIdle,
	}
}

func (e *DefaultEngine) SetPhase(p Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phase = p
}

func (e *DefaultEngine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

func (e *DefaultEngine) capturing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase == PhaseRecording
}

// OnClick resolves the real interaction target, folds double-clicks and
// reports. Navigation-causing clicks are reported synchronously so the
// caller can release the pending navigation afterwards.
func (e *DefaultEngine) OnClick(ctx context.Context, ev ClickEvent) (bool, error) {
	if !e.capturing() {
		return false, nil
	}

	target := e.resolveTarget(ev.Target)
	if target == nil {
		return false, nil
	}

	// A click commits whatever was being typed or scrolled.
	e.flushPending(ctx)

	ts := e.eventTime(ev.Timestamp)
	kind := action.TypeClick

	e.mu.Lock()
	if e.lastClickNode == target && ts-e.lastClickAt <= e.cfg.DoubleClickWindow.Milliseconds() {
		kind = action.TypeDoubleClick
		e.lastClickNode = nil
	} else {
		e.lastClickNode = target
		e.lastClickAt = ts
	}
	e.mu.Unlock()

	a := &action.Action{
		Type:      kind,
		Timestamp: ts,
		URL:       e.pageURL(),
		Selector:  e.generator.Generate(target),
		Click: &action.ClickDetail{
			X:        ev.X,
			Y:        ev.Y,
			Button:   ev.Button,
			AltKey:   ev.AltKey,
			CtrlKey:  ev.CtrlKey,
			MetaKey:  ev.MetaKey,
			ShiftKey: ev.ShiftKey,
		},
	}

	if navigates(target) {
		return true, e.emitSync(ctx, a)
	}
	e.emitAsync(a)
	return false, nil
}

// OnInput coalesces keystrokes into one action per typing burst. A
// burst closes after the idle gap or when a different field is touched.
func (e *DefaultEngine) OnInput(ev InputEvent) {
	if !e.capturing() {
		return
	}

	target := ev.Target
	if target == nil || e.excluded(target) {
		return
	}

	ts := e.eventTime(ev.Timestamp)

	e.mu.Lock()
	if e.pendingInput != nil && e.pendingInput.target != target {
		stale := e.takeInputLocked()
		e.mu.Unlock()
		e.emitAsync(e.inputAction(stale))
		e.mu.Lock()
	}
	if e.pendingInput == nil {
		e.pendingInput = &pendingInput{target: target, first: ts}
	}
	e.pendingInput.value = ev.Value
	e.pendingInput.last = ts
	e.pendingInput.keystrokes++
	e.mu.Unlock()

	e.inputDeb.schedule(e.cfg.InputIdle, e.fireInput)
}

func (e *DefaultEngine) fireInput() {
	e.mu.Lock()
	p := e.takeInputLocked()
	e.mu.Unlock()
	if p != nil {
		e.emitAsync(e.inputAction(p))
	}
}

// takeInputLocked detaches the pending burst; callers hold e.mu
func (e *DefaultEngine) takeInputLocked() *pendingInput {
	p := e.pendingInput
	e.pendingInput = nil
	return p
}

func (e *DefaultEngine) inputAction(p *pendingInput) *action.Action {
	elapsed := p.last - p.first
	delay := 0
	if p.keystrokes > 0 {
		delay = int(elapsed) / p.keystrokes
	}

	inputType := dom.Attr(p.target, "type")
	return &action.Action{
		Type:      action.TypeInput,
		Timestamp: p.last,
		URL:       e.pageURL(),
		Selector:  e.generator.Generate(p.target),
		Input: &action.InputDetail{
			Value:         p.value,
			InputType:     inputType,
			FieldName:     dom.Attr(p.target, "name"),
			FieldID:       dom.Attr(p.target, "id"),
			Sensitive:     strings.EqualFold(inputType, "password"),
			TypingDelayMs: delay,
		},
	}
}

// OnKeypress reports special keys. Printable characters are already
// covered by input coalescing, so only named keys produce an action.
func (e *DefaultEngine) OnKeypress(ctx context.Context, ev KeyEvent) {
	if !e.capturing() || !namedKey(ev.Key) {
		return
	}
	if ev.Target != nil && e.excluded(ev.Target) {
		return
	}

	// Enter commits the field before the keypress is recorded.
	e.flushPending(ctx)

	a := &action.Action{
		Type:      action.TypeKeypress,
		Timestamp: e.eventTime(ev.Timestamp),
		URL:       e.pageURL(),
		Keypress: &action.KeypressDetail{
			Key:      ev.Key,
			AltKey:   ev.AltKey,
			CtrlKey:  ev.CtrlKey,
			MetaKey:  ev.MetaKey,
			ShiftKey: ev.ShiftKey,
		},
	}
	if ev.Target != nil {
		a.Selector = e.generator.Generate(ev.Target)
	}
	e.emitAsync(a)
}

// OnScroll keeps only the final position of a scroll burst
func (e *DefaultEngine) OnScroll(ev ScrollEvent) {
	if !e.capturing() {
		return
	}

	ts := e.eventTime(ev.Timestamp)

	e.mu.Lock()
	if e.pendingScroll == nil {
		e.pendingScroll = &pendingScroll{}
	}
	e.pendingScroll.x = ev.X
	e.pendingScroll.y = ev.Y
	e.pendingScroll.last = ts
	e.mu.Unlock()

	e.scrollDeb.schedule(e.cfg.ScrollIdle, e.fireScroll)
}

func (e *DefaultEngine) fireScroll() {
	e.mu.Lock()
	p := e.pendingScroll
	e.pendingScroll = nil
	e.mu.Unlock()
	if p != nil {
		e.emitAsync(e.scrollAction(p))
	}
}

func (e *DefaultEngine) scrollAction(p *pendingScroll) *action.Action {
	return &action.Action{
		Type:      action.TypeScroll,
		Timestamp: p.last,
		URL:       e.pageURL(),
		Scroll:    &action.ScrollDetail{ScrollX: p.x, ScrollY: p.y},
	}
}

func (e *DefaultEngine) OnSelect(ctx context.Context, ev SelectEvent) {
	if !e.capturing() {
		return
	}
	if ev.Target == nil || e.excluded(ev.Target) {
		return
	}

	e.emitAsync(&action.Action{
		Type:      action.TypeSelect,
		Timestamp: e.eventTime(ev.Timestamp),
		URL:       e.pageURL(),
		Selector:  e.generator.Generate(ev.Target),
		Select:    &action.SelectDetail{Value: ev.Value, Text: ev.Text},
	})
}

// OnSubmit reports a form submission synchronously, since submission
// almost always unloads the page. Returns true when the caller must
// hold and re-trigger the submit.
func (e *DefaultEngine) OnSubmit(ctx context.Context, ev SubmitEvent) (bool, error) {
	if !e.capturing() {
		return false, nil
	}
	if ev.Target == nil || e.excluded(ev.Target) {
		return false, nil
	}

	e.flushPending(ctx)

	a := &action.Action{
		Type:      action.TypeSubmit,
		Timestamp: e.eventTime(ev.Timestamp),
		URL:       e.pageURL(),
		Selector:  e.generator.Generate(ev.Target),
		Submit: &action.SubmitDetail{
			FormID:     dom.Attr(ev.Target, "id"),
			FormAction: dom.Attr(ev.Target, "action"),
		},
	}
	return true, e.emitSync(ctx, a)
}

// SaveCurrentState commits pending coalesced events and returns a copy
// of the page-local action log. The coordinator calls this just before
// unload; the log has no ids because ids are never assigned here.
func (e *DefaultEngine) SaveCurrentState(ctx context.Context) []*action.Action {
	e.flushPending(ctx)

	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*action.Action, len(e.actions))
	copy(out, e.actions)
	return out
}

// flushPending force-fires both coalescing slots synchronously
func (e *DefaultEngine) flushPending(ctx context.Context) {
	e.inputDeb.cancel()
	e.scrollDeb.cancel()

	e.mu.Lock()
	in := e.takeInputLocked()
	sc := e.pendingScroll
	e.pendingScroll = nil
	e.mu.Unlock()

	if in != nil {
		if err := e.emitSync(ctx, e.inputAction(in)); err != nil {
			e.logger.Debug("flush of pending input failed", zap.Error(err))
		}
	}
	if sc != nil {
		if err := e.emitSync(ctx, e.scrollAction(sc)); err != nil {
			e.logger.Debug("flush of pending scroll failed", zap.Error(err))
		}
	}
}

// emitSync records locally and reports, returning the transport error
func (e *DefaultEngine) emitSync(ctx context.Context, a *action.Action) error {
	e.record(a)
	return e.reporter.SyncAction(ctx, a)
}

// emitAsync records locally and reports fire-and-forget. A failed sync
// is logged and dropped: the page may be unloading, and the coordinator
// recovers whatever it already has from durable state.
func (e *DefaultEngine) emitAsync(a *action.Action) {
	e.record(a)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := e.reporter.SyncAction(ctx, a); err != nil {
			e.logger.Debug("action sync failed",
				zap.String("type", string(a.Type)),
				zap.Error(err))
		}
	}()
}

func (e *DefaultEngine) record(a *action.Action) {
	e.mu.Lock()
	e.actions = append(e.actions, a)
	e.mu.Unlock()
}

// resolveTarget walks upward from the raw event target looking for the
// nearest interactive element. Icons and labels inside buttons fire the
// raw event, but the button is the interaction.
func (e *DefaultEngine) resolveTarget(n *dom.Node) *dom.Node {
	if n == nil || e.excluded(n) {
		return nil
	}

	cur := n
	for hops := 0; cur != nil && hops <= e.cfg.MaxAncestorHops; hops++ {
		if dom.Tag(cur) != "" && e.classifier.IsInteractive(cur) {
			return cur
		}
		cur = cur.Parent
	}
	return nil
}

// excluded reports whether the node sits inside the recording
// indicator, whose own controls must never show up in a recording
func (e *DefaultEngine) excluded(n *dom.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if dom.Attr(cur, "id") == e.cfg.IndicatorID {
			return true
		}
	}
	return false
}

func (e *DefaultEngine) pageURL() string {
	if e.snap == nil {
		return ""
	}
	return e.snap.URL
}

func (e *DefaultEngine) eventTime(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return e.now()
}

// navigates reports whether activating the node unloads the page:
// a real link, a submit control, or a button defaulting to submit
// inside a form.
func navigates(n *dom.Node) bool {
	switch dom.Tag(n) {
	case "a":
		href := dom.Attr(n, "href")
		return href != "" && href != "#" && !strings.HasPrefix(strings.ToLower(href), "javascript:")
	case "input":
		return strings.EqualFold(dom.Attr(n, "type"), "submit")
	case "button":
		typ := strings.ToLower(dom.Attr(n, "type"))
		if typ == "submit" {
			return true
		}
		return typ == "" && dom.ClosestTag(n, "form") != nil
	}
	return false
}

// namedKey filters keypress reporting down to keys with names longer
// than one character, minus bare modifiers
func namedKey(key string) bool {
	if len([]rune(key)) <= 1 {
		return false
	}
	switch key {
	case "Shift", "Control", "Alt", "Meta", "CapsLock", "NumLock", "ScrollLock":
		return false
	}
	return true
}
