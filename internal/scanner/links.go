package scanner

import (
	"net/url"
	"strings"

	"github.com/GriffinCanCode/jobscan/internal/dom"
)

const maxNavigationLinks = 50

var navLinkSelector = dom.Selector(`nav a[href], header a[href], [role="navigation"] a[href]`)

// navigationLinks returns the distinct absolute URLs of the page's
// navigation menus.
func navigationLinks(doc *dom.Document) []string {
	seen := make(map[string]bool)
	links := []string{}
	for _, n := range doc.Filter(navLinkSelector) {
		href := resolveHref(doc, dom.Attr(n, "href"))
		if href == "" || seen[href] {
			continue
		}
		seen[href] = true
		links = append(links, href)
		if len(links) == maxNavigationLinks {
			break
		}
	}
	return links
}

// resolveHref makes href absolute against the document URL. Fragments,
// scripts and mail links yield "".
func resolveHref(doc *dom.Document, href string) string {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if doc.URL != nil {
		u = doc.URL.ResolveReference(u)
	}
	u.Fragment = ""
	return u.String()
}
