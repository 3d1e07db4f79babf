package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Predicate selects nodes during a query.
type Predicate func(*html.Node) bool

// Walk visits every node reachable from root in document order. Open shadow
// roots are entered where they appear among the host's children. Returning
// false from visit prunes the subtree below that node.
func Walk(root *html.Node, visit func(*html.Node) bool) {
	walkScoped(root, root, make(map[*html.Node]struct{}), func(n, _ *html.Node) bool {
		return visit(n)
	})
}

// QueryAll returns every element under root (root included) matching pred.
func QueryAll(root *html.Node, pred Predicate) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Query returns the first element under root matching pred, or nil.
func Query(root *html.Node, pred Predicate) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// Roots returns root followed by every open shadow root reachable from it.
func Roots(root *html.Node) []*html.Node {
	roots := []*html.Node{root}
	Walk(root, func(n *html.Node) bool {
		if IsShadowRoot(n) {
			roots = append(roots, n)
		}
		return true
	})
	return roots
}

// walkScoped is the traversal used by Walk and Document. scope is the tree
// (document or shadow root) the node belongs to.
func walkScoped(n, scope *html.Node, seen map[*html.Node]struct{}, visit func(n, scope *html.Node) bool) {
	if _, ok := seen[n]; ok {
		return
	}
	seen[n] = struct{}{}
	if !visit(n, scope) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		childScope := scope
		if isTemplate(c) {
			if shadowMode(c) != "open" {
				continue
			}
			childScope = c
		}
		walkScoped(c, childScope, seen, visit)
	}
}

// IsShadowRoot reports whether n is an open declarative shadow root.
func IsShadowRoot(n *html.Node) bool {
	return isTemplate(n) && n.Parent != nil && shadowMode(n) == "open"
}

// ShadowRoot returns the open shadow root attached to host, or nil.
func ShadowRoot(host *html.Node) *html.Node {
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if IsShadowRoot(c) {
			return c
		}
	}
	return nil
}

// Parent returns the parent in the composed tree: the host element when n
// sits directly inside a shadow root.
func Parent(n *html.Node) *html.Node {
	p := n.Parent
	if p != nil && IsShadowRoot(p) {
		return p.Parent
	}
	return p
}

// ParentElement is Parent restricted to element nodes.
func ParentElement(n *html.Node) *html.Node {
	for p := Parent(n); p != nil; p = Parent(p) {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// PrevElement returns the previous element sibling, skipping shadow roots.
func PrevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && !isTemplate(s) {
			return s
		}
	}
	return nil
}

// NextElement returns the next element sibling, skipping templates.
func NextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && !isTemplate(s) {
			return s
		}
	}
	return nil
}

// FirstElement returns the first child element of n, skipping templates.
func FirstElement(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !isTemplate(c) {
			return c
		}
	}
	return nil
}

// Contains reports whether n is an ancestor of (or equal to) other in the
// composed tree.
func Contains(n, other *html.Node) bool {
	for c := other; c != nil; c = Parent(c) {
		if c == n {
			return true
		}
	}
	return false
}

func isTemplate(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Template
}

func shadowMode(n *html.Node) string {
	mode := Attr(n, "shadowrootmode")
	if mode == "" {
		mode = Attr(n, "shadowroot")
	}
	return strings.ToLower(strings.TrimSpace(mode))
}
