// Package browser renders live pages with Chrome over go-rod and exposes
// them to the scanner.
//
// A rendered page is serialized together with its open shadow roots as
// declarative shadow DOM (<template shadowrootmode="open">), so the scanner
// walks live pages with the same code it uses for saved HTML. Each iframe
// becomes its own scanner.Frame.
//
// History hooks injected into the page report pushState, replaceState and
// popstate through a CDP binding; together with a URL poll they drive a
// navigation.Observer.
package browser
