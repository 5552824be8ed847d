package capture

import "flowcap/pkg/dom"

// Raw page events, one struct per listener. Timestamps are epoch
// milliseconds; a zero timestamp means "now".

// ClickEvent is a pointer press on some node
type ClickEvent struct {
	Target    *dom.Node
	X, Y      int
	Button    string
	AltKey    bool
	CtrlKey   bool
	MetaKey   bool
	ShiftKey  bool
	Timestamp int64
}

// InputEvent is one keystroke's worth of change to a text field. The
// engine coalesces bursts of these into a single action.
type InputEvent struct {
	Target    *dom.Node
	Value     string
	Timestamp int64
}

// KeyEvent is a non-text key press (Enter, Escape, arrows)
type KeyEvent struct {
	Target    *dom.Node
	Key       string
	AltKey    bool
	CtrlKey   bool
	MetaKey   bool
	ShiftKey  bool
	Timestamp int64
}

// ScrollEvent is a viewport scroll position sample
type ScrollEvent struct {
	X, Y      int
	Timestamp int64
}

// SelectEvent is a committed choice in a select control
type SelectEvent struct {
	Target    *dom.Node
	Value     string
	Text      string
	Timestamp int64
}

// SubmitEvent is a form submission; Target is the form element
type SubmitEvent struct {
	Target    *dom.Node
	Timestamp int64
}
