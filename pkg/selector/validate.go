package selector

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flowcap/pkg/action"
	"flowcap/pkg/dom"
)

// Validator re-resolves selector candidates against the document a
// strategy was generated from and reports the first one that uniquely
// identifies the original node.
type Validator struct {
	doc *goquery.Document
}

// NewValidator wraps the snapshot in a CSS-queryable document
func NewValidator(snap *dom.Snapshot) *Validator {
	return &Validator{doc: goquery.NewDocumentFromNode(snap.Root)}
}

// FirstUnique walks the strategy's priority list and returns the name of
// the first candidate that matches exactly the original node. Candidates
// that cannot be re-resolved through a CSS query in this context (text,
// XPath, position) are skipped, not failed.
func (v *Validator) FirstUnique(n *dom.Node, s *action.SelectorStrategy) (string, bool) {
	if n == nil || s == nil {
		return "", false
	}

	for _, name := range s.Priority {
		value, ok := s.Candidate(name)
		if !ok {
			continue
		}

		var query string
		switch name {
		case action.CandidateID:
			query = attrQuery("id", value)
		case action.CandidateDataTestID:
			query = attrQuery("data-testid", value) + ", " + attrQuery("data-test-id", value)
		case action.CandidateAriaLabel:
			query = attrQuery("aria-label", value)
		case action.CandidateName:
			query = attrQuery("name", value)
		case action.CandidateCSS:
			query = value
		default:
			continue
		}

		if v.matchesExactly(query, n) {
			return name, true
		}
	}

	return "", false
}

// matchesExactly reports whether the query yields a single match that is
// the original node reference
func (v *Validator) matchesExactly(query string, n *dom.Node) bool {
	sel := v.doc.Find(query)
	return sel.Length() == 1 && sel.Nodes[0] == n
}

func attrQuery(attr, value string) string {
	escaped := strings.ReplaceAll(value, `'`, `\'`)
	return fmt.Sprintf("[%s='%s']", attr, escaped)
}
