package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Node aliases the underlying html node type so downstream packages can
// share signatures without importing the parser themselves
type Node = html.Node

// Snapshot wraps a parsed document captured from a live page. Capture,
// classification and selector generation all operate on the same snapshot
// so a single interaction is resolved against one consistent tree.
type Snapshot struct {
	Root *html.Node
	URL  string
}

// Parse builds a snapshot from serialized page markup
func Parse(markup, url string) (*Snapshot, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page snapshot: %w", err)
	}
	return &Snapshot{Root: root, URL: url}, nil
}

// Body returns the document's body element, or nil for a degenerate tree
func (s *Snapshot) Body() *html.Node {
	return FindFirst(s.Root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "body"
	})
}

// ByID returns the first element carrying the given id attribute
func (s *Snapshot) ByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	return FindFirst(s.Root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, "id") == id
	})
}

// Walk visits every node depth-first until fn returns false
func Walk(root *html.Node, fn func(*html.Node) bool) {
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if !fn(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	if root != nil {
		visit(root)
	}
}

// FindFirst returns the first node matching pred in document order
func FindFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAll returns every node matching pred in document order
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var result []*html.Node
	Walk(root, func(n *html.Node) bool {
		if pred(n) {
			result = append(result, n)
		}
		return true
	})
	return result
}

// Attr returns the value of the named attribute, or "" when absent
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present, even if empty
func HasAttr(n *html.Node, name string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

// Tag returns the lowercased element name, or "" for non-element nodes
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Classes splits the class attribute into its individual names
func Classes(n *html.Node) []string {
	raw := Attr(n, "class")
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

// HasClassSubstring reports whether any class name contains sub,
// case-insensitively
func HasClassSubstring(n *html.Node, sub string) bool {
	sub = strings.ToLower(sub)
	for _, c := range Classes(n) {
		if strings.Contains(strings.ToLower(c), sub) {
			return true
		}
	}
	return false
}

// Text returns the node's flattened text content with runs of whitespace
// collapsed to single spaces
func Text(n *html.Node) string {
	var sb strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		}
		return true
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Ancestors returns the element ancestors of n from parent to root
func Ancestors(n *html.Node) []*html.Node {
	var chain []*html.Node
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			chain = append(chain, p)
		}
	}
	return chain
}

// ClosestTag returns the nearest ancestor (or n itself) with the given tag
func ClosestTag(n *html.Node, tag string) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if Tag(cur) == tag {
			return cur
		}
	}
	return nil
}

// SiblingIndex returns the 1-based position of n among same-tag element
// siblings, the convention XPath indexing uses
func SiblingIndex(n *html.Node) int {
	idx := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && sib.Data == n.Data {
			idx++
		}
	}
	return idx
}

// ChildIndex returns the 0-based position of n among all element siblings
func ChildIndex(n *html.Node) int {
	idx := 0
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode {
			idx++
		}
	}
	return idx
}

// ElementChildren returns the element children of n in order
func ElementChildren(n *html.Node) []*html.Node {
	var kids []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			kids = append(kids, c)
		}
	}
	return kids
}

// Contains reports whether container is n or an ancestor of n
func Contains(container, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == container {
			return true
		}
	}
	return false
}
