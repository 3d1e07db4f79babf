package scanner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/types"
	"golang.org/x/net/html"
)

const maxActionText = 100

// actionRule pairs a kind with the pattern that selects it. Rules are tested
// in slice order and the first match wins, so submit intent beats previous
// intent beats navigation intent.
type actionRule struct {
	Kind    types.ActionKind
	Pattern *regexp.Regexp
}

var actionRules = []actionRule{
	{types.ActionSubmit, regexp.MustCompile(`(?i)\b(submit|save|send|finish|complete|confirm)\b`)},
	{types.ActionPrevious, regexp.MustCompile(`(?i)\b(back|previous|prev|return)\b|[←‹«]`)},
	{types.ActionNavigation, regexp.MustCompile(`(?i)\b(next|continue|apply|open|learn more|view|proceed|start|begin|get started)\b|[→›»]`)},
}

var (
	buttonSelector = dom.Selector(`button, input[type="submit"], input[type="button"], [role="button"]`)

	// flowVocabulary is the narrower set of texts that move an application
	// forward; activating one of these hands the session off.
	flowVocabulary = regexp.MustCompile(`(?i)\b(apply|apply now|easy apply|quick apply|continue|next step|next|start application|begin application|proceed)\b`)

	nextIntent   = regexp.MustCompile(`(?i)\b(next|continue)\b|[→›»]`)
	stepText     = regexp.MustCompile(`(?i)\bstep\s+(\d+)\s*(?:of|/)\s*(\d+)\b`)
	stepMarkup   = dom.Selector(`[aria-current="step"], [data-step], [class*="stepper"], [class*="step-indicator"], [class*="progress-step"], [class*="wizard-step"], ol.steps, ul.steps`)
	cssIdentChar = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// classifyText returns the kind of the first rule matching s.
func classifyText(s string) (types.ActionKind, bool) {
	for _, rule := range actionRules {
		if rule.Pattern.MatchString(s) {
			return rule.Kind, true
		}
	}
	return "", false
}

// clickable is a candidate control with its extracted text.
type clickable struct {
	node *html.Node
	text string
	kind types.ActionKind
	ok   bool
}

// isLinkButton reports anchors styled or behaving as buttons.
func isLinkButton(n *html.Node) bool {
	if !dom.IsTag(n, "a") {
		return false
	}
	if dom.ClassContains(n, "btn") || dom.ClassContains(n, "button") || dom.ClassContains(n, "cta") {
		return true
	}
	href := strings.TrimSpace(dom.Attr(n, "href"))
	return href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:")
}

func clickableText(n *html.Node) string {
	text := truncate(dom.Text(n), maxActionText)
	if text == "" {
		text = firstNonEmpty(dom.Attr(n, "value"), dom.Attr(n, "aria-label"), dom.Attr(n, "title"))
	}
	return dom.NormalizeSpace(text)
}

func collectClickables(doc *dom.Document) []clickable {
	var out []clickable
	for _, n := range doc.Elements() {
		if dom.HasAttr(n, "hidden") {
			continue
		}
		if !buttonSelector(n) && !dom.IsTag(n, "a") {
			continue
		}
		text := clickableText(n)
		if text == "" {
			continue
		}
		signal := strings.Join([]string{text, dom.Attr(n, "aria-label"), dom.Attr(n, "title")}, " ")
		kind, ok := classifyText(signal)
		out = append(out, clickable{node: n, text: text, kind: kind, ok: ok})
	}
	return out
}

// classifyActions returns the classified buttons and the flow triggers.
func classifyActions(doc *dom.Document) (actions, triggers []types.ActionDescriptor) {
	seen := make(map[string]bool)
	seenTrigger := make(map[string]bool)

	for i, c := range collectClickables(doc) {
		id := dom.Attr(c.node, "id")
		if id == "" {
			id = fmt.Sprintf("action_%d", i)
		}
		desc := types.ActionDescriptor{
			ID:       id,
			Kind:     c.kind,
			Text:     c.text,
			Selector: selectorFor(c.node),
		}

		isButton := buttonSelector(c.node) || isLinkButton(c.node)
		if isButton && c.ok && !seen[id] {
			seen[id] = true
			actions = append(actions, desc)
		}

		// Flow triggers: buttons not consumed as submit, or any anchor.
		if (dom.IsTag(c.node, "a") || c.kind != types.ActionSubmit) && flowVocabulary.MatchString(c.text) && !seenTrigger[id] {
			seenTrigger[id] = true
			desc.Kind = types.ActionNavigation
			triggers = append(triggers, desc)
		}
	}
	return actions, triggers
}

// detectMultiPage derives the multi-page flag and the current step number.
func detectMultiPage(doc *dom.Document, actions []types.ActionDescriptor, text string) (bool, int) {
	hasPrev, hasNext := false, false
	for _, a := range actions {
		switch {
		case a.Kind == types.ActionPrevious:
			hasPrev = true
		case a.Kind == types.ActionNavigation && nextIntent.MatchString(a.Text):
			hasNext = true
		}
	}

	step := 1
	match := stepText.FindStringSubmatch(text)
	if match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil && n > 0 {
			step = n
		}
	}
	indicator := match != nil || len(doc.Filter(stepMarkup)) > 0

	multi := (hasPrev && hasNext) || hasPrev || indicator
	return multi, step
}

// selectorFor builds a CSS selector for n: #id, a name attribute, or an
// nth-of-type path anchored at the nearest ancestor with an id.
func selectorFor(n *html.Node) string {
	if id := dom.Attr(n, "id"); cssIdentChar.MatchString(id) {
		return "#" + id
	}
	if name := dom.Attr(n, "name"); name != "" {
		return fmt.Sprintf(`%s[name="%s"]`, dom.Tag(n), strings.ReplaceAll(name, `"`, `\"`))
	}

	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = dom.ParentElement(cur) {
		tag := dom.Tag(cur)
		if id := dom.Attr(cur, "id"); cur != n && cssIdentChar.MatchString(id) {
			parts = append(parts, "#"+id)
			break
		}
		if tag == "body" || tag == "html" {
			parts = append(parts, tag)
			break
		}
		parts = append(parts, fmt.Sprintf("%s:nth-of-type(%d)", tag, nthOfType(cur)))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func nthOfType(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			idx++
		}
	}
	return idx
}
