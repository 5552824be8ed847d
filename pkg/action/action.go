package action

import (
	"fmt"
	"strconv"
	"strings"
)

// Type identifies the kind of user interaction an Action captures
type Type string

const (
	TypeClick       Type = "click"
	TypeDoubleClick Type = "doubleclick"
	TypeInput       Type = "input"
	TypeSelect      Type = "select"
	TypeSubmit      Type = "submit"
	TypeKeypress    Type = "keypress"
	TypeScroll      Type = "scroll"
	TypeNavigation  Type = "navigation"
)

// Types lists all valid action types
var Types = []Type{
	TypeClick,
	TypeDoubleClick,
	TypeInput,
	TypeSelect,
	TypeSubmit,
	TypeKeypress,
	TypeScroll,
	TypeNavigation,
}

// Valid returns true if t is a known action type
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Action represents one captured, semantically meaningful user interaction.
// IDs are assigned by the session coordinator, never by the capture side.
type Action struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Timestamp int64             `json:"timestamp"` // epoch milliseconds
	URL       string            `json:"url"`
	Selector  *SelectorStrategy `json:"selector,omitempty"`

	Click      *ClickDetail      `json:"click,omitempty"`
	Input      *InputDetail      `json:"input,omitempty"`
	Select     *SelectDetail     `json:"select,omitempty"`
	Submit     *SubmitDetail     `json:"submit,omitempty"`
	Keypress   *KeypressDetail   `json:"keypress,omitempty"`
	Scroll     *ScrollDetail     `json:"scroll,omitempty"`
	Navigation *NavigationDetail `json:"navigation,omitempty"`
}

// ClickDetail carries pointer coordinates and modifier state for click
// and doubleclick actions
type ClickDetail struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Button   string `json:"button"`
	AltKey   bool   `json:"alt_key,omitempty"`
	CtrlKey  bool   `json:"ctrl_key,omitempty"`
	MetaKey  bool   `json:"meta_key,omitempty"`
	ShiftKey bool   `json:"shift_key,omitempty"`
}

// InputDetail carries the coalesced text entry for an input action.
// Value holds the sanitized value once the action has passed through the
// scrubbing pipeline.
type InputDetail struct {
	Value         string `json:"value"`
	InputType     string `json:"input_type"`
	FieldName     string `json:"field_name,omitempty"`
	FieldID       string `json:"field_id,omitempty"`
	Sensitive     bool   `json:"sensitive"`
	TypingDelayMs int    `json:"typing_delay_ms"`
}

// SelectDetail carries the chosen option of a select action
type SelectDetail struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// SubmitDetail carries form identity for a submit action
type SubmitDetail struct {
	FormID     string `json:"form_id,omitempty"`
	FormAction string `json:"form_action,omitempty"`
}

// KeypressDetail carries a single non-text key interaction
type KeypressDetail struct {
	Key      string `json:"key"`
	AltKey   bool   `json:"alt_key,omitempty"`
	CtrlKey  bool   `json:"ctrl_key,omitempty"`
	MetaKey  bool   `json:"meta_key,omitempty"`
	ShiftKey bool   `json:"shift_key,omitempty"`
}

// ScrollDetail carries the final scroll offsets after coalescing
type ScrollDetail struct {
	ScrollX int `json:"scroll_x"`
	ScrollY int `json:"scroll_y"`
}

// NavigationDetail carries the page transition of a navigation action
type NavigationDetail struct {
	FromURL string `json:"from_url"`
	ToURL   string `json:"to_url"`
	Trigger string `json:"trigger"` // link, submit, script, history
}

// FormatID renders a 1-based action counter as an action ID. Width is
// padded to three digits and grows naturally beyond 999.
func FormatID(n int) string {
	return fmt.Sprintf("act_%03d", n)
}

// ParseID extracts the numeric counter from an action ID
func ParseID(id string) (int, error) {
	rest, ok := strings.CutPrefix(id, "act_")
	if !ok {
		return 0, fmt.Errorf("malformed action id: %s", id)
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("malformed action id: %s", id)
	}
	return n, nil
}

// DedupeKey returns the identity used when merging per-page caches across a
// navigation boundary. Two reports of the same physical interaction (a
// retried relay) collapse to one key; two distinct same-millisecond
// interactions keep distinct keys through type and selector.
func (a *Action) DedupeKey() string {
	fingerprint := ""
	if a.Selector != nil {
		fingerprint = a.Selector.Fingerprint()
	}
	return fmt.Sprintf("%d|%s|%s", a.Timestamp, a.Type, fingerprint)
}
