package dom

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed page with shadow-inclusive indexes built once at
// construction. It is read-only after NewDocument returns.
type Document struct {
	Root *html.Node
	URL  *url.URL

	elements []*html.Node
	order    map[*html.Node]int
	scopes   map[*html.Node]*html.Node
	ids      map[*html.Node]map[string]*html.Node
	labels   map[*html.Node]map[string][]*html.Node
	roots    []*html.Node
}

// NewDocument indexes root. rawURL may be empty or unparsable; URL is then nil.
func NewDocument(root *html.Node, rawURL string) *Document {
	d := &Document{
		Root:   root,
		order:  make(map[*html.Node]int),
		scopes: make(map[*html.Node]*html.Node),
		ids:    make(map[*html.Node]map[string]*html.Node),
		labels: make(map[*html.Node]map[string][]*html.Node),
		roots:  []*html.Node{root},
	}
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil && u.Host != "" {
		d.URL = u
	}

	walkScoped(root, root, make(map[*html.Node]struct{}), func(n, scope *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if n != root && IsShadowRoot(n) {
			d.roots = append(d.roots, n)
			return true
		}
		d.order[n] = len(d.elements)
		d.elements = append(d.elements, n)
		d.scopes[n] = scope

		if id := Attr(n, "id"); id != "" {
			byID := d.ids[scope]
			if byID == nil {
				byID = make(map[string]*html.Node)
				d.ids[scope] = byID
			}
			if _, dup := byID[id]; !dup {
				byID[id] = n
			}
		}
		if n.DataAtom == atom.Label {
			if target := Attr(n, "for"); target != "" {
				byFor := d.labels[scope]
				if byFor == nil {
					byFor = make(map[string][]*html.Node)
					d.labels[scope] = byFor
				}
				byFor[target] = append(byFor[target], n)
			}
		}
		return true
	})
	return d
}

// Elements returns every element in shadow-inclusive document order.
func (d *Document) Elements() []*html.Node {
	return d.elements
}

// Filter returns the elements matching pred, in document order.
func (d *Document) Filter(pred Predicate) []*html.Node {
	var out []*html.Node
	for _, n := range d.elements {
		if pred(n) {
			out = append(out, n)
		}
	}
	return out
}

// Roots returns the document root followed by every open shadow root.
func (d *Document) Roots() []*html.Node {
	return d.roots
}

// Position returns the document-order index of an element, or -1.
func (d *Document) Position(n *html.Node) int {
	if i, ok := d.order[n]; ok {
		return i
	}
	return -1
}

// ByID resolves an id the way getElementById would from the tree containing
// from: the same document or shadow root first, then any tree.
func (d *Document) ByID(from *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	if scope, ok := d.scopes[from]; ok {
		if n := d.ids[scope][id]; n != nil {
			return n
		}
	}
	for _, root := range d.roots {
		if n := d.ids[root][id]; n != nil {
			return n
		}
	}
	return nil
}

// LabelsFor returns the <label for=id> elements in the tree containing control.
func (d *Document) LabelsFor(control *html.Node) []*html.Node {
	id := Attr(control, "id")
	if id == "" {
		return nil
	}
	return d.labels[d.scopes[control]][id]
}

// Title returns the text of the first <title> element.
func (d *Document) Title() string {
	n := Query(d.Root, func(n *html.Node) bool { return n.DataAtom == atom.Title })
	return Text(n)
}

// Host returns the lower-case hostname of the document URL, or "".
func (d *Document) Host() string {
	if d.URL == nil {
		return ""
	}
	return strings.ToLower(d.URL.Hostname())
}

// Selection wraps the light DOM in a goquery document for head-level lookups
// (meta tags, structured data scripts) that never live in shadow trees.
func (d *Document) Selection() *goquery.Document {
	return goquery.NewDocumentFromNode(d.Root)
}
