package dom

import (
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selector compiles a CSS selector group into a Predicate. A selector that
// fails to compile matches nothing.
func Selector(sel string) Predicate {
	compiled, err := cascadia.Compile(sel)
	if err != nil {
		return func(*html.Node) bool { return false }
	}
	return compiled.Match
}

// Any combines predicates with logical OR.
func Any(preds ...Predicate) Predicate {
	return func(n *html.Node) bool {
		for _, p := range preds {
			if p(n) {
				return true
			}
		}
		return false
	}
}
