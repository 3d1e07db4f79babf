// Package dom provides shadow-inclusive traversal and lookup over parsed HTML
// documents.
//
// Documents are *html.Node trees from golang.org/x/net/html. Open shadow roots
// are expected in their declarative form: a <template shadowrootmode="open">
// as a child of the host element. The browser source serializes live pages in
// that form, so static files and rendered pages share one representation.
//
// Traversal rules:
//   - light children and open shadow roots are visited
//   - closed shadow roots and inert <template> content are never visited
//   - each node is visited at most once
package dom
