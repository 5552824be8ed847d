// Package selector derives multi-strategy locators for DOM nodes. Every
// candidate technique runs independently and all results are persisted:
// the top-ranked candidate may stop matching after a page change, and a
// replay engine falls through the remaining ones.
package selector

import (
	"fmt"
	"strings"

	"flowcap/pkg/action"
	"flowcap/pkg/dom"
)

// DefaultMaxCSSDepth bounds how many ancestors the CSS builder climbs
const DefaultMaxCSSDepth = 4

const (
	exactTextLimit     = 50
	containsTextLength = 30
	maxTargetClasses   = 3
	maxAncestorClasses = 2
)

// Generator computes selector strategies against one page snapshot
type Generator struct {
	snap     *dom.Snapshot
	maxDepth int
}

// NewGenerator creates a generator for the given snapshot. A non-positive
// maxDepth selects the default CSS ancestor depth.
func NewGenerator(snap *dom.Snapshot, maxDepth int) *Generator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCSSDepth
	}
	return &Generator{snap: snap, maxDepth: maxDepth}
}

// Generate computes every candidate for the node and ranks the populated
// ones. Candidates never short-circuit each other.
func (g *Generator) Generate(n *dom.Node) *action.SelectorStrategy {
	if n == nil {
		return &action.SelectorStrategy{}
	}

	s := &action.SelectorStrategy{
		ID:            stableID(n),
		DataTestID:    dataTestID(n),
		AriaLabel:     dom.Attr(n, "aria-label"),
		Name:          formName(n),
		CSS:           g.buildCSS(n),
		XPath:         g.buildRelativeXPath(n),
		XPathAbsolute: buildAbsoluteXPath(n),
		Position:      buildPosition(n),
	}

	text := dom.Text(n)
	if text != "" {
		if len([]rune(text)) <= exactTextLimit {
			s.Text = text
		} else {
			s.TextContains = string([]rune(text)[:containsTextLength])
		}
	}

	return s.RankPriority()
}

// stableID returns the element id unless it looks auto-generated
func stableID(n *dom.Node) string {
	id := dom.Attr(n, "id")
	if id == "" || IsDynamic(id) {
		return ""
	}
	return id
}

func dataTestID(n *dom.Node) string {
	if v := dom.Attr(n, "data-testid"); v != "" {
		return v
	}
	return dom.Attr(n, "data-test-id")
}

// formName returns the name attribute for form controls only. Arbitrary
// elements reuse name for unrelated purposes (meta, iframes) where it is
// useless as a locator.
func formName(n *dom.Node) string {
	switch dom.Tag(n) {
	case "input", "select", "textarea", "button", "form":
		return dom.Attr(n, "name")
	}
	return ""
}

// buildCSS assembles a child-combinator path bottom-up: the target's own
// fragment first, then one simple fragment per ancestor until the depth
// bound or the document body.
func (g *Generator) buildCSS(n *dom.Node) string {
	fragments := []string{targetFragment(n)}

	depth := 1
	for _, ancestor := range dom.Ancestors(n) {
		tag := dom.Tag(ancestor)
		if tag == "body" || tag == "html" || depth >= g.maxDepth {
			break
		}
		fragments = append([]string{simpleFragment(ancestor)}, fragments...)
		depth++
	}

	return strings.Join(fragments, " > ")
}

// targetFragment renders the node's own selector piece: tag, a type
// attribute filter for inputs, and up to three stable classes
func targetFragment(n *dom.Node) string {
	var sb strings.Builder
	sb.WriteString(dom.Tag(n))

	if dom.Tag(n) == "input" {
		if typ := dom.Attr(n, "type"); typ != "" {
			sb.WriteString(fmt.Sprintf("[type=%q]", typ))
		}
	}

	for _, c := range StableClasses(dom.Classes(n), maxTargetClasses) {
		sb.WriteString(".")
		sb.WriteString(c)
	}

	return sb.String()
}

// simpleFragment renders an ancestor piece: tag#id when a stable id
// exists, otherwise tag plus up to two stable classes, otherwise bare tag
func simpleFragment(n *dom.Node) string {
	tag := dom.Tag(n)
	if id := stableID(n); id != "" {
		return tag + "#" + id
	}

	var sb strings.Builder
	sb.WriteString(tag)
	for _, c := range StableClasses(dom.Classes(n), maxAncestorClasses) {
		sb.WriteString(".")
		sb.WriteString(c)
	}
	return sb.String()
}

// buildRelativeXPath tries the most anchored predicate available: id,
// test id, name for form controls, stable classes, and finally a 1-based
// sibling-index on the tag
func (g *Generator) buildRelativeXPath(n *dom.Node) string {
	tag := dom.Tag(n)

	if id := stableID(n); id != "" {
		return fmt.Sprintf("//*[@id='%s']", id)
	}
	if v := dataTestID(n); v != "" {
		return fmt.Sprintf("//%s[@data-testid='%s']", tag, v)
	}
	if name := formName(n); name != "" && tag == "input" {
		return fmt.Sprintf("//input[@name='%s']", name)
	}

	if classes := StableClasses(dom.Classes(n), maxAncestorClasses); len(classes) > 0 {
		preds := make([]string, len(classes))
		for i, c := range classes {
			preds[i] = fmt.Sprintf("contains(@class, '%s')", c)
		}
		return fmt.Sprintf("//%s[%s]", tag, strings.Join(preds, " and "))
	}

	return fmt.Sprintf("//%s[%d]", tag, dom.SiblingIndex(n))
}

// buildAbsoluteXPath renders the full indexed path from the document root.
// Always computable; strictly a last resort.
func buildAbsoluteXPath(n *dom.Node) string {
	var parts []string
	for cur := n; cur != nil && dom.Tag(cur) != ""; cur = cur.Parent {
		parts = append([]string{fmt.Sprintf("%s[%d]", dom.Tag(cur), dom.SiblingIndex(cur))}, parts...)
		if dom.Tag(cur) == "html" {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}
	// The root html element needs no index.
	parts[0] = "html"
	return "/" + strings.Join(parts, "/")
}

// buildPosition pairs the parent's simplified selector with the node's
// 0-based element child index, rendered as "parent@index". Only emitted
// when the parent fragment is anchored by an id or a stable class.
func buildPosition(n *dom.Node) string {
	parent := n.Parent
	if parent == nil || dom.Tag(parent) == "" || dom.Tag(parent) == "html" {
		return ""
	}

	frag := simpleFragment(parent)
	if frag == dom.Tag(parent) {
		// A bare tag locates nothing reliably.
		return ""
	}

	return fmt.Sprintf("%s@%d", frag, dom.ChildIndex(n))
}
