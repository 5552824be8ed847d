package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"flowcap/pkg/action"
)

func inputAction(fieldType, name, id, value string) *action.Action {
	return &action.Action{
		Type: action.TypeInput,
		Input: &action.InputDetail{
			Value:     value,
			InputType: fieldType,
			FieldName: name,
			FieldID:   id,
		},
	}
}

func TestApply_CardNumber(t *testing.T) {
	a := inputAction("text", "cardNumber", "", "4111 1111 1111 1234")

	changed := Apply(a)

	assert.True(t, changed)
	assert.Equal(t, "**** **** **** 1234", a.Input.Value)
	assert.True(t, a.Input.Sensitive)
}

func TestApply_Password(t *testing.T) {
	a := inputAction("password", "login-password", "", "s3cr3t")

	changed := Apply(a)

	assert.True(t, changed)
	assert.Equal(t, "••••••", a.Input.Value)
	assert.True(t, a.Input.Sensitive)
}

func TestApply_EmailPartial(t *testing.T) {
	a := inputAction("email", "contact", "", "jane.doe@example.com")

	changed := Apply(a)

	assert.True(t, changed)
	assert.Equal(t, "ja••••••••@example.com", a.Input.Value)
	assert.False(t, a.Input.Sensitive, "partial email masking is not a sensitivity verdict")
}

func TestApply_UpstreamFlagHonored(t *testing.T) {
	a := inputAction("text", "nickname", "", "hunter2")
	a.Input.Sensitive = true

	changed := Apply(a)

	assert.True(t, changed)
	assert.Equal(t, "•••••••", a.Input.Value)
}

func TestApply_PassThrough(t *testing.T) {
	a := inputAction("text", "street-address", "addr1", "1 Main St")

	changed := Apply(a)

	assert.False(t, changed)
	assert.Equal(t, "1 Main St", a.Input.Value)
	assert.False(t, a.Input.Sensitive)
}

func TestApply_OnlyInputActions(t *testing.T) {
	a := &action.Action{Type: action.TypeClick, Click: &action.ClickDetail{X: 10, Y: 20}}
	assert.False(t, Apply(a))
	assert.False(t, Apply(nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value string
		want  Kind
	}{
		{"password type", Field{Type: "password"}, "x", KindSecret},
		{"password name", Field{Type: "text", Name: "user_password"}, "x", KindSecret},
		{"pwd id", Field{Type: "text", ID: "pwd"}, "x", KindSecret},
		{"cvv", Field{Type: "text", Name: "cvv"}, "123", KindSecret},
		{"cvv on card field", Field{Type: "text", Name: "cardCvv"}, "123", KindSecret},
		{"ssn kebab", Field{Type: "text", Name: "social-security-number"}, "x", KindSecret},
		{"pin", Field{Type: "text", ID: "userPin"}, "0000", KindSecret},
		{"shipping is not pin", Field{Type: "text", Name: "shippingAddress"}, "x", KindNone},
		{"compass is not password", Field{Type: "text", Name: "compass"}, "x", KindNone},
		{"card by name", Field{Type: "text", Name: "cardNumber"}, "x", KindCard},
		{"card by value", Field{Type: "text", Name: "payment"}, "4111-1111-1111-1234", KindCard},
		{"short digit run", Field{Type: "text", Name: "zip"}, "94110", KindNone},
		{"email type", Field{Type: "email", Name: "contact"}, "a@b.c", KindEmail},
		{"plain text", Field{Type: "text", Name: "title"}, "hello", KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.field, tt.value))
		})
	}
}

func TestMaskCard(t *testing.T) {
	assert.Equal(t, "**** **** **** 1234", MaskCard("4111 1111 1111 1234"))
	assert.Equal(t, "************1234", MaskCard("4111111111111234"))
	assert.Equal(t, "****-****-****-1234", MaskCard("4111-1111-1111-1234"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "ja••••••••@example.com", MaskEmail("jane.doe@example.com"))
	assert.Equal(t, "al••••••••@x.co", MaskEmail("al@x.co"))
	assert.Equal(t, "no••••••••", MaskEmail("not-an-email"))
}
