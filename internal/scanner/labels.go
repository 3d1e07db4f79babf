package scanner

import (
	"regexp"
	"strings"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"golang.org/x/net/html"
)

const (
	maxLabelLength = 80
	ancestorDepth  = 3
	siblingWindow  = 3
)

// fieldVocabulary matches words that commonly name application form fields.
var fieldVocabulary = regexp.MustCompile(`(?i)\b(name|first|last|surname|email|e-mail|phone|mobile|telephone|address|street|city|state|province|zip|postal|post code|country|location|linkedin|github|website|portfolio|resume|cv|cover letter|salary|compensation|experience|education|school|university|degree|employer|company|title|position|start date|availability|notice period|gender|pronouns|race|ethnicity|veteran|disability|sponsorship|visa|authorized|authorization|relocat\w*|referr\w*|hear about|birth|date)\b`)

var (
	labelAttrs  = []string{"data-label", "data-name", "data-field-name"}
	testIDAttrs = []string{"data-testid", "data-test-id", "data-qa", "data-test"}
	labelTags   = map[string]bool{
		"span": true, "div": true, "p": true, "strong": true, "b": true, "em": true,
		"small": true, "dt": true, "th": true, "td": true, "h5": true, "h6": true,
	}
)

// labelResolver infers a human-readable label for a form control. controls
// is the set of controls found on the page; a label-like element followed by
// a different control belongs to that control.
type labelResolver struct {
	doc      *dom.Document
	controls map[*html.Node]struct{}
}

func newLabelResolver(doc *dom.Document, controls []*html.Node) *labelResolver {
	set := make(map[*html.Node]struct{}, len(controls))
	for _, c := range controls {
		set[c] = struct{}{}
	}
	return &labelResolver{doc: doc, controls: set}
}

// Resolve runs the strategy chain; the first non-empty result wins. The
// returned label is normalized and may be empty.
func (r *labelResolver) Resolve(control *html.Node) string {
	strategies := []func(*html.Node) string{
		r.fromAria,
		r.fromLabelElement,
		r.fromSiblings,
		r.fromAncestors,
		r.fromDataAttributes,
		r.fromAttributes,
	}
	for _, strategy := range strategies {
		if label := normalizeLabel(strategy(control)); label != "" {
			return label
		}
	}
	return ""
}

func (r *labelResolver) fromAria(n *html.Node) string {
	if v := strings.TrimSpace(dom.Attr(n, "aria-label")); v != "" {
		return v
	}
	for _, attr := range []string{"aria-labelledby", "aria-describedby"} {
		var parts []string
		for _, id := range strings.Fields(dom.Attr(n, attr)) {
			if ref := r.doc.ByID(n, id); ref != nil {
				if t := dom.Text(ref); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return ""
}

func (r *labelResolver) fromLabelElement(n *html.Node) string {
	for _, label := range r.doc.LabelsFor(n) {
		if t := r.labelText(label, n); t != "" {
			return t
		}
	}
	for p := dom.ParentElement(n); p != nil; p = dom.ParentElement(p) {
		if dom.IsTag(p, "label") {
			return r.labelText(p, n)
		}
		if dom.IsTag(p, "form", "body") {
			break
		}
	}
	return ""
}

// labelText is the text of label without the control's own text (select
// options, nested inputs).
func (r *labelResolver) labelText(label, control *html.Node) string {
	return dom.TextExcluding(label, func(c *html.Node) bool {
		return c == control || r.isControl(c) || dom.IsTag(c, "select", "option", "datalist", "textarea")
	})
}

func (r *labelResolver) fromSiblings(n *html.Node) string {
	i := 0
	for s := dom.PrevElement(n); s != nil && i < siblingWindow; s = dom.PrevElement(s) {
		if r.containsControl(s) {
			break
		}
		if t, ok := r.labelLike(s, n); ok {
			return t
		}
		i++
	}
	return ""
}

// fromAncestors scans up to ancestorDepth containers for the nearest
// label-like element preceding the control with no other control between.
func (r *labelResolver) fromAncestors(n *html.Node) string {
	pos := r.doc.Position(n)
	anc := n
	for depth := 0; depth < ancestorDepth; depth++ {
		anc = dom.ParentElement(anc)
		if anc == nil || dom.IsTag(anc, "form", "body", "html") {
			break
		}

		best := ""
		for _, c := range dom.QueryAll(anc, func(c *html.Node) bool { return c != anc }) {
			cp := r.doc.Position(c)
			if cp < 0 {
				continue
			}
			if cp >= pos {
				break
			}
			if r.isControl(c) {
				best = ""
				continue
			}
			if t, ok := r.labelLike(c, n); ok {
				best = t
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

func (r *labelResolver) fromDataAttributes(n *html.Node) string {
	for _, attr := range labelAttrs {
		v := strings.TrimSpace(dom.Attr(n, attr))
		if looksLikeIdentifier(v) {
			v = titleize(v)
		}
		if isLabelText(v) {
			return v
		}
	}
	for _, attr := range testIDAttrs {
		v := titleize(dom.Attr(n, attr))
		if isLabelText(v) && fieldVocabulary.MatchString(v) {
			return v
		}
	}
	return ""
}

func (r *labelResolver) fromAttributes(n *html.Node) string {
	if v := strings.TrimSpace(dom.Attr(n, "title")); v != "" {
		return v
	}
	if v := strings.TrimSpace(dom.Attr(n, "placeholder")); v != "" {
		return v
	}
	return titleize(dom.Attr(n, "name"))
}

// labelLike applies the tag and text heuristics for label candidates. A
// <label for> pointing at another element already belongs to it.
func (r *labelResolver) labelLike(n, control *html.Node) (string, bool) {
	if r.containsControl(n) || r.ownedByOther(n, control) {
		return "", false
	}
	text := dom.Text(n)
	if !isLabelText(text) {
		return "", false
	}
	if dom.IsTag(n, "label", "legend") {
		return text, true
	}
	if !labelTags[dom.Tag(n)] {
		return "", false
	}
	if dom.ClassContains(n, "label") ||
		strings.HasSuffix(text, ":") ||
		strings.HasSuffix(text, "*") ||
		fieldVocabulary.MatchString(text) {
		return text, true
	}
	return "", false
}

func (r *labelResolver) ownedByOther(n, control *html.Node) bool {
	if !dom.IsTag(n, "label") {
		return false
	}
	target := r.doc.ByID(n, strings.TrimSpace(dom.Attr(n, "for")))
	return target != nil && target != control
}

func isLabelText(s string) bool {
	if s == "" || len(s) > maxLabelLength {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r > 0x7f }) >= 0
}

func (r *labelResolver) isControl(n *html.Node) bool {
	_, ok := r.controls[n]
	return ok
}

func (r *labelResolver) containsControl(n *html.Node) bool {
	return dom.Query(n, r.isControl) != nil
}
