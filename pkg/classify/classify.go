// Package classify decides whether a DOM node should be treated as an
// actionable interaction target. Classification is an ordered OR across
// independent heuristics: missing a real interaction is worse than
// over-capturing, since debouncing and double-click folding downstream
// already guard against over-capture.
package classify

import (
	"strings"

	"flowcap/pkg/dom"
)

// nativeTags are elements interactive by their own semantics
var nativeTags = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
	"option":   true,
	"label":    true,
	"summary":  true,
}

// handlerAttrs are inline attributes that wire behavior directly onto a node
var handlerAttrs = []string{
	"onclick",
	"onmousedown",
	"onmouseup",
	"onchange",
	"onsubmit",
	"oninput",
	"onkeydown",
	"onkeyup",
	"ontouchstart",
}

// interactiveRoles is the ARIA role allow-list
var interactiveRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"option":           true,
	"radio":            true,
	"checkbox":         true,
	"tab":              true,
	"switch":           true,
	"treeitem":         true,
}

// interactiveClassHints are substrings of class names that conventionally
// mark clickable widgets
var interactiveClassHints = []string{
	"btn",
	"button",
	"link",
	"clickable",
	"toggle",
	"dropdown",
	"menu-item",
	"menuitem",
	"selectable",
	"chip",
	"tab",
}

// actionDataAttrs are data attributes frameworks use to denote actionability
var actionDataAttrs = []string{
	"data-action",
	"data-click",
	"data-href",
	"data-toggle",
	"data-target",
	"data-dismiss",
	"data-trigger",
}

// selectableListHints mark lists whose items are choices rather than layout
var selectableListHints = []string{
	"menu",
	"dropdown",
	"option",
	"list",
	"choice",
	"select",
	"autocomplete",
}

// structuralListHints mark lists used for navigation or page structure
var structuralListHints = []string{
	"nav",
	"navbar",
	"breadcrumb",
	"footer",
	"sitemap",
	"toc",
}

// Predicate is one independent interactivity heuristic
type Predicate struct {
	Name  string
	Match func(n *dom.Node) bool
}

// Classifier answers whether a node is an actionable target. It holds the
// ordered heuristic list; any single match suffices.
type Classifier struct {
	predicates []Predicate
}

// New creates a classifier with the default heuristics in priority order
func New() *Classifier {
	return &Classifier{
		predicates: []Predicate{
			{Name: "native_tag", Match: NativeTag},
			{Name: "inline_handler", Match: InlineHandler},
			{Name: "aria_role", Match: AriaRole},
			{Name: "interactive_class", Match: InteractiveClass},
			{Name: "action_data_attr", Match: ActionDataAttr},
			{Name: "pointer_cursor", Match: PointerCursor},
			{Name: "list_item", Match: ListItem},
			{Name: "container", Match: Container},
		},
	}
}

// IsInteractive returns true if any heuristic matches the node
func (c *Classifier) IsInteractive(n *dom.Node) bool {
	_, ok := c.Match(n)
	return ok
}

// Match returns the name of the first matching heuristic
func (c *Classifier) Match(n *dom.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, p := range c.predicates {
		if p.Match(n) {
			return p.Name, true
		}
	}
	return "", false
}

// NativeTag matches elements that are interactive by their own semantics
func NativeTag(n *dom.Node) bool {
	return nativeTags[dom.Tag(n)]
}

// InlineHandler matches nodes carrying an inline event handler attribute
func InlineHandler(n *dom.Node) bool {
	for _, attr := range handlerAttrs {
		if dom.HasAttr(n, attr) {
			return true
		}
	}
	return false
}

// AriaRole matches nodes whose role is on the interactive allow-list
func AriaRole(n *dom.Node) bool {
	role := strings.ToLower(strings.TrimSpace(dom.Attr(n, "role")))
	return interactiveRoles[role]
}

// InteractiveClass matches nodes with an interactive-looking class name
func InteractiveClass(n *dom.Node) bool {
	for _, hint := range interactiveClassHints {
		if dom.HasClassSubstring(n, hint) {
			return true
		}
	}
	return false
}

// ActionDataAttr matches nodes carrying a data attribute that denotes
// actionability
func ActionDataAttr(n *dom.Node) bool {
	for _, attr := range actionDataAttrs {
		if dom.HasAttr(n, attr) {
			return true
		}
	}
	return false
}

// PointerCursor matches nodes styled with a pointer cursor. The inline
// style attribute is checked directly; the capture collaborator may also
// stamp the computed cursor onto data-flowcap-cursor when inline styles
// are absent.
func PointerCursor(n *dom.Node) bool {
	style := strings.ReplaceAll(dom.Attr(n, "style"), " ", "")
	if strings.Contains(strings.ToLower(style), "cursor:pointer") {
		return true
	}
	return strings.EqualFold(dom.Attr(n, "data-flowcap-cursor"), "pointer")
}

// ListItem matches li elements inside lists whose items behave as choices.
// An li inside a ul is interactive unless the enclosing list looks
// navigational or structural; it is always interactive when the list's
// class names mark it selectable.
func ListItem(n *dom.Node) bool {
	if dom.Tag(n) != "li" {
		return false
	}
	list := enclosingList(n)
	if list == nil {
		return false
	}
	if matchesAnyClassHint(list, selectableListHints) {
		return true
	}
	if matchesAnyClassHint(list, structuralListHints) {
		return false
	}
	return dom.Tag(list) == "ul"
}

// Container matches generic div/span widgets: focusable via tabindex, or
// placed inside a classed dropdown/menu/select/option container, or inside
// an li of a selectable list.
func Container(n *dom.Node) bool {
	tag := dom.Tag(n)
	if tag != "div" && tag != "span" {
		return false
	}
	if dom.HasAttr(n, "tabindex") {
		return true
	}
	for _, ancestor := range dom.Ancestors(n) {
		if matchesAnyClassHint(ancestor, selectableListHints) {
			return true
		}
		if dom.Tag(ancestor) == "li" {
			if list := enclosingList(ancestor); list != nil && matchesAnyClassHint(list, selectableListHints) {
				return true
			}
		}
	}
	return false
}

func enclosingList(n *dom.Node) *dom.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if tag := dom.Tag(cur); tag == "ul" || tag == "ol" {
			return cur
		}
	}
	return nil
}

func matchesAnyClassHint(n *dom.Node, hints []string) bool {
	for _, hint := range hints {
		if dom.HasClassSubstring(n, hint) {
			return true
		}
	}
	return false
}
