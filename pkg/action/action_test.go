package action

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatID(t *testing.T) {
	tests := []struct {
		name     string
		counter  int
		expected string
	}{
		{name: "first action", counter: 1, expected: "act_001"},
		{name: "two digits", counter: 42, expected: "act_042"},
		{name: "three digits", counter: 999, expected: "act_999"},
		{name: "beyond padding", counter: 1000, expected: "act_1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatID(tt.counter))
		})
	}
}

func TestParseID(t *testing.T) {
	n, err := ParseID("act_017")
	require.NoError(t, err)
	assert.Equal(t, 17, n)

	_, err = ParseID("action-17")
	assert.Error(t, err)

	_, err = ParseID("act_xyz")
	assert.Error(t, err)
}

func TestTypeValid(t *testing.T) {
	for _, typ := range Types {
		assert.True(t, typ.Valid(), "type %s should be valid", typ)
	}
	assert.False(t, Type("hover").Valid())
	assert.False(t, Type("").Valid())
}

func TestSelectorStrategy_RankPriority(t *testing.T) {
	tests := []struct {
		name     string
		strategy SelectorStrategy
		expected []string
	}{
		{
			name: "id outranks everything",
			strategy: SelectorStrategy{
				ID:            "login-btn",
				CSS:           "button.primary",
				XPathAbsolute: "/html/body/button[1]",
			},
			expected: []string{"id", "css", "xpathAbsolute"},
		},
		{
			name: "no id falls through to next candidate",
			strategy: SelectorStrategy{
				DataTestID: "submit-button",
				Text:       "Submit",
			},
			expected: []string{"dataTestId", "text"},
		},
		{
			name: "text contains instead of exact text",
			strategy: SelectorStrategy{
				CSS:          "div.banner > p",
				TextContains: "Welcome back to the",
			},
			expected: []string{"css", "textContains"},
		},
		{
			name:     "empty strategy",
			strategy: SelectorStrategy{},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.strategy.RankPriority()
			assert.Equal(t, tt.expected, tt.strategy.Priority)
		})
	}
}

func TestSelectorStrategy_Fingerprint(t *testing.T) {
	s := &SelectorStrategy{CSS: "button.save", XPathAbsolute: "/html/body/button[2]"}
	assert.Equal(t, "css=button.save", s.Fingerprint())

	s = &SelectorStrategy{ID: "save"}
	assert.Equal(t, "id=save", s.Fingerprint())

	empty := &SelectorStrategy{}
	assert.Equal(t, "", empty.Fingerprint())
	assert.True(t, empty.Empty())
}

func TestAction_DedupeKey(t *testing.T) {
	sel := &SelectorStrategy{CSS: "button.save"}

	a := Action{Type: TypeClick, Timestamp: 1700000000123, Selector: sel}
	b := Action{Type: TypeClick, Timestamp: 1700000000123, Selector: sel}
	assert.Equal(t, a.DedupeKey(), b.DedupeKey())

	// Same millisecond, different type: distinct interactions survive the merge.
	c := Action{Type: TypeKeypress, Timestamp: 1700000000123, Selector: sel}
	assert.NotEqual(t, a.DedupeKey(), c.DedupeKey())

	// Same millisecond and type, different target.
	d := Action{Type: TypeClick, Timestamp: 1700000000123, Selector: &SelectorStrategy{CSS: "button.cancel"}}
	assert.NotEqual(t, a.DedupeKey(), d.DedupeKey())
}

func TestAction_JSONShape(t *testing.T) {
	a := Action{
		ID:        "act_001",
		Type:      TypeInput,
		Timestamp: 1700000000000,
		URL:       "https://app.example.com/login",
		Selector: (&SelectorStrategy{
			ID:  "email",
			CSS: "input[type=email]#email",
		}).RankPriority(),
		Input: &InputDetail{
			Value:         "user@example.com",
			InputType:     "email",
			TypingDelayMs: 120,
		},
	}

	data, err := json.Marshal(&a)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "act_001", decoded["id"])
	assert.Equal(t, "input", decoded["type"])
	assert.NotContains(t, decoded, "click", "unset payloads must be omitted")
	assert.NotContains(t, decoded, "scroll")

	selector := decoded["selector"].(map[string]interface{})
	assert.Equal(t, []interface{}{"id", "css"}, selector["priority"])
}
