// Package sanitize masks sensitive input values before an action record
// leaves the local process. The capture layer already flags fields it
// recognizes as sensitive; this pipeline re-derives sensitivity on its
// own from the field metadata, so an upstream misclassification cannot
// leak a raw value.
package sanitize

import (
	"regexp"
	"strings"

	"flowcap/pkg/action"
)

// Kind labels what the pipeline decided about a field
type Kind string

const (
	// KindNone passes the value through unchanged.
	KindNone Kind = "none"
	// KindCard keeps the last four digits visible.
	KindCard Kind = "card"
	// KindSecret masks every character.
	KindSecret Kind = "secret"
	// KindEmail keeps a two-character prefix and the domain.
	KindEmail Kind = "email"
)

// Field is the metadata sensitivity is derived from
type Field struct {
	Type string
	Name string
	ID   string
}

const (
	maskRune = '•'
	cardRune = '*'

	// Fixed-width run for partially masked emails. A constant width
	// keeps the masked form from leaking the local part's length.
	emailMaskWidth = 8
)

// Keyword families matched against tokenized field names and ids.
// Tokens, not substrings: "shipping" must not trip the pin family.
var (
	passwordTokens = tokenSet("password", "passwd", "passphrase", "pass", "pwd", "secret")
	cardTokens     = tokenSet("card", "cardnumber", "creditcard", "ccnumber", "ccnum", "cc", "pan")
	cvvTokens      = tokenSet("cvv", "cvv2", "cvc", "cvc2", "csc")
	ssnTokens      = tokenSet("ssn", "socialsecurity", "socialsecuritynumber", "taxid", "itin")
	pinTokens      = tokenSet("pin", "pincode", "passcode")
)

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	nonAlnum      = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	digitsOnly    = regexp.MustCompile(`^[0-9]+$`)
)

// Apply masks the value of an input action in place and reports whether
// anything changed. Actions of any other type pass through untouched.
func Apply(a *action.Action) bool {
	if a == nil || a.Type != action.TypeInput || a.Input == nil {
		return false
	}

	f := Field{Type: a.Input.InputType, Name: a.Input.FieldName, ID: a.Input.FieldID}
	kind := Classify(f, a.Input.Value)

	// Honor an upstream sensitive flag even when derivation found
	// nothing: never unmask.
	if kind == KindNone && a.Input.Sensitive {
		kind = KindSecret
	}

	switch kind {
	case KindCard:
		a.Input.Value = MaskCard(a.Input.Value)
		a.Input.Sensitive = true
	case KindSecret:
		a.Input.Value = MaskFull(a.Input.Value)
		a.Input.Sensitive = true
	case KindEmail:
		a.Input.Value = MaskEmail(a.Input.Value)
	default:
		return false
	}
	return true
}

// Classify derives the masking decision from field metadata and, for
// card numbers, from the shape of the value itself. The CVV, password,
// SSN and PIN families are checked before the card family so a field
// like "cardCvv" gets the full mask rather than a last-4 reveal.
func Classify(f Field, value string) Kind {
	typ := strings.ToLower(strings.TrimSpace(f.Type))
	tokens := fieldTokens(f.Name, f.ID)

	if typ == "password" || matchesFamily(tokens, passwordTokens) {
		return KindSecret
	}
	if matchesFamily(tokens, cvvTokens) || matchesFamily(tokens, ssnTokens) || matchesFamily(tokens, pinTokens) {
		return KindSecret
	}
	if matchesFamily(tokens, cardTokens) || looksLikeCardNumber(value) {
		return KindCard
	}
	if typ == "email" {
		return KindEmail
	}
	return KindNone
}

// MaskCard hides every digit except the last four, preserving separator
// characters: "4111 1111 1111 1234" becomes "**** **** **** 1234".
func MaskCard(value string) string {
	runes := []rune(value)

	digits := 0
	for _, r := range runes {
		if r >= '0' && r <= '9' {
			digits++
		}
	}

	seen := 0
	out := make([]rune, len(runes))
	for i, r := range runes {
		if r < '0' || r > '9' {
			out[i] = r
			continue
		}
		seen++
		if seen > digits-4 {
			out[i] = r
		} else {
			out[i] = cardRune
		}
	}
	return string(out)
}

// MaskFull replaces every character, preserving only the length
func MaskFull(value string) string {
	out := make([]rune, 0, len(value))
	for range value {
		out = append(out, maskRune)
	}
	return string(out)
}

// MaskEmail keeps the first two characters of the local part and the
// whole domain: "jane.doe@example.com" becomes "ja••••••••@example.com".
// A value without an "@" is treated as all local part.
func MaskEmail(value string) string {
	local, domain, found := strings.Cut(value, "@")

	visible := []rune(local)
	if len(visible) > 2 {
		visible = visible[:2]
	}

	masked := string(visible) + strings.Repeat(string(maskRune), emailMaskWidth)
	if found {
		masked += "@" + domain
	}
	return masked
}

// looksLikeCardNumber reports whether the value is a 13 to 19 digit run
// once spaces, dashes and dots are stripped
func looksLikeCardNumber(value string) bool {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return -1
		}
		return r
	}, value)

	if len(stripped) < 13 || len(stripped) > 19 {
		return false
	}
	return digitsOnly.MatchString(stripped)
}

// fieldTokens splits name and id on delimiter and camelCase boundaries
// and also joins adjacent tokens, so "social-security-number" yields the
// "socialsecurity" compound its family expects
func fieldTokens(parts ...string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, part := range parts {
		if part == "" {
			continue
		}
		spaced := camelBoundary.ReplaceAllString(part, "$1 $2")
		split := nonAlnum.Split(spaced, -1)

		var prev string
		for _, tok := range split {
			tok = strings.ToLower(tok)
			if tok == "" {
				continue
			}
			tokens[tok] = struct{}{}
			if prev != "" {
				tokens[prev+tok] = struct{}{}
			}
			prev = tok
		}
	}
	return tokens
}

func matchesFamily(tokens map[string]struct{}, family map[string]struct{}) bool {
	for tok := range tokens {
		if _, ok := family[tok]; ok {
			return true
		}
	}
	return false
}

func tokenSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
