package selector

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"flowcap/pkg/action"
	"flowcap/pkg/dom"
)

// Resolve locates the node a recorded strategy points at in a fresh
// snapshot, trying candidates in priority order. Unlike validation at
// capture time, replay has no original node reference, so every
// candidate is fair game here, including text, XPath and position.
// Returns nil when no candidate resolves to exactly one node.
func Resolve(snap *dom.Snapshot, s *action.SelectorStrategy) *dom.Node {
	if snap == nil || snap.Root == nil || s == nil {
		return nil
	}
	doc := goquery.NewDocumentFromNode(snap.Root)

	for _, name := range s.Priority {
		value, ok := s.Candidate(name)
		if !ok {
			continue
		}

		var n *dom.Node
		switch name {
		case action.CandidateID:
			n = resolveCSS(doc, attrQuery("id", value))
		case action.CandidateDataTestID:
			n = resolveCSS(doc, attrQuery("data-testid", value)+", "+attrQuery("data-test-id", value))
		case action.CandidateAriaLabel:
			n = resolveCSS(doc, attrQuery("aria-label", value))
		case action.CandidateName:
			n = resolveCSS(doc, attrQuery("name", value))
		case action.CandidateCSS:
			n = resolveCSS(doc, value)
		case action.CandidateText:
			n = resolveText(snap, value, false)
		case action.CandidateTextContains:
			n = resolveText(snap, value, true)
		case action.CandidateXPath, action.CandidateXPathAbsolute:
			n = resolveXPath(snap, value)
		case action.CandidatePosition:
			n = resolvePosition(doc, value)
		}

		if n != nil {
			return n
		}
	}

	return nil
}

func resolveCSS(doc *goquery.Document, query string) *dom.Node {
	sel := doc.Find(query)
	if sel.Length() != 1 {
		return nil
	}
	return sel.Nodes[0]
}

func resolveXPath(snap *dom.Snapshot, expr string) *dom.Node {
	nodes, err := htmlquery.QueryAll(snap.Root, expr)
	if err != nil || len(nodes) != 1 {
		return nil
	}
	return nodes[0]
}

// resolveText scans for elements whose flattened text matches. Ancestors
// of a match necessarily contain the same text, so matches that enclose
// another match are discarded and only the deepest survivor counts.
func resolveText(snap *dom.Snapshot, want string, contains bool) *dom.Node {
	var matches []*dom.Node
	dom.Walk(snap.Root, func(n *dom.Node) bool {
		if dom.Tag(n) == "" {
			return true
		}
		text := dom.Text(n)
		if contains {
			if strings.Contains(text, want) {
				matches = append(matches, n)
			}
		} else if text == want {
			matches = append(matches, n)
		}
		return true
	})

	var deepest []*dom.Node
	for _, m := range matches {
		enclosesAnother := false
		for _, other := range matches {
			if other != m && dom.Contains(m, other) {
				enclosesAnother = true
				break
			}
		}
		if !enclosesAnother {
			deepest = append(deepest, m)
		}
	}
	if len(deepest) != 1 {
		return nil
	}
	return deepest[0]
}

// resolvePosition splits "parentFragment@index" and indexes into the
// parent's element children
func resolvePosition(doc *goquery.Document, value string) *dom.Node {
	at := strings.LastIndex(value, "@")
	if at <= 0 {
		return nil
	}
	idx, err := strconv.Atoi(value[at+1:])
	if err != nil || idx < 0 {
		return nil
	}
	parent := resolveCSS(doc, value[:at])
	if parent == nil {
		return nil
	}
	children := dom.ElementChildren(parent)
	if idx >= len(children) {
		return nil
	}
	return children[idx]
}
