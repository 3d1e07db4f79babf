package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr returns the value of attribute key on n, or "".
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether n carries attribute key, even if empty.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// Tag returns the lower-case tag name of an element node, or "".
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// IsTag reports whether n is an element with one of the given tag names.
func IsTag(n *html.Node, tags ...string) bool {
	tag := Tag(n)
	if tag == "" {
		return false
	}
	for _, t := range tags {
		if tag == t {
			return true
		}
	}
	return false
}

// ClassContains reports whether the class attribute of n contains substr,
// case-insensitively.
func ClassContains(n *html.Node, substr string) bool {
	return strings.Contains(strings.ToLower(Attr(n, "class")), substr)
}

// Text returns the textContent of n: all descendant text, excluding scripts,
// styles and nested template content. Whitespace is collapsed. Called on a
// shadow root it returns that root's text.
func Text(n *html.Node) string {
	return TextExcluding(n, nil)
}

// TextExcluding is Text with an extra subtree filter; subtrees for which skip
// returns true contribute nothing.
func TextExcluding(n *html.Node, skip func(*html.Node) bool) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var f func(*html.Node)
	f = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if c == n {
				break
			}
			switch c.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
			if skip != nil && skip(c) {
				return
			}
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			f(cc)
		}
	}
	f(n)
	return NormalizeSpace(b.String())
}

// NormalizeSpace collapses runs of whitespace into single spaces and trims.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ComposedText joins the text of the document and of every open shadow root.
func ComposedText(d *Document) string {
	parts := make([]string, 0, len(d.Roots()))
	for _, root := range d.Roots() {
		if t := Text(root); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
