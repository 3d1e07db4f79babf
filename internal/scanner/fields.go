package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/types"
	"golang.org/x/net/html"
)

const (
	maxSectionDepth  = 10
	maxSectionLength = 120
)

var (
	controlSelector = dom.Selector(`input, select, textarea, [role="textbox"], [role="combobox"], [role="listbox"], [contenteditable=""], [contenteditable="true"]`)
	nativeControl   = dom.Selector(`input, select, textarea`)
	sectionHeading  = dom.Selector(`h1, h2, h3, h4, legend`)
	placeholderItem = regexp.MustCompile(`(?i)^\W*(select|choose|please select|pick one|none selected)\b`)

	excludedInputTypes = map[string]bool{
		"hidden": true, "submit": true, "button": true, "reset": true, "image": true,
	}

	inputTypes = map[string]types.FieldType{
		"text":           types.FieldText,
		"email":          types.FieldEmail,
		"tel":            types.FieldTel,
		"url":            types.FieldURL,
		"number":         types.FieldNumber,
		"file":           types.FieldFile,
		"checkbox":       types.FieldCheckbox,
		"radio":          types.FieldRadio,
		"date":           types.FieldDate,
		"datetime":       types.FieldDate,
		"datetime-local": types.FieldDate,
		"month":          types.FieldDate,
		"week":           types.FieldDate,
		"time":           types.FieldDate,
	}
)

// findControls returns the fillable controls of the document in order,
// excluding button-like inputs and ARIA wrappers around native controls.
func findControls(doc *dom.Document) []*html.Node {
	var out []*html.Node
	for _, n := range doc.Filter(controlSelector) {
		if dom.IsTag(n, "input") && excludedInputTypes[strings.ToLower(dom.Attr(n, "type"))] {
			continue
		}
		if !dom.IsTag(n, "input", "select", "textarea") {
			inner := dom.Query(n, func(c *html.Node) bool { return c != n && nativeControl(c) })
			if inner != nil {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

// extractFields builds one FieldDescriptor per control. Ids are unique within
// the result and stable across scans of an unchanged page.
func extractFields(doc *dom.Document) []types.FieldDescriptor {
	controls := findControls(doc)
	labels := newLabelResolver(doc, controls)

	tagIndex := make(map[string]int)
	used := make(map[string]bool, len(controls))
	fields := make([]types.FieldDescriptor, 0, len(controls))

	for _, n := range controls {
		tag := dom.Tag(n)
		index := tagIndex[tag]
		tagIndex[tag]++

		name := dom.Attr(n, "name")
		if name == "" {
			name = dom.Attr(n, "id")
		}

		id := dom.Attr(n, "id")
		if id == "" {
			base := name
			if base == "" {
				base = "field"
			}
			id = fmt.Sprintf("%s_%s_%d", tag, base, index)
		}
		if used[id] {
			id = fmt.Sprintf("%s_%d", id, index)
		}
		used[id] = true

		fieldType := fieldTypeOf(n)
		fields = append(fields, types.FieldDescriptor{
			ID:             id,
			Name:           name,
			Type:           fieldType,
			Label:          labels.Resolve(n),
			Placeholder:    strings.TrimSpace(firstNonEmpty(dom.Attr(n, "placeholder"), dom.Attr(n, "aria-placeholder"))),
			Options:        fieldOptions(doc, n, fieldType),
			SectionContext: sectionContext(n),
			Required:       dom.HasAttr(n, "required") || strings.EqualFold(dom.Attr(n, "aria-required"), "true"),
		})
	}
	return fields
}

func fieldTypeOf(n *html.Node) types.FieldType {
	switch dom.Tag(n) {
	case "select":
		return types.FieldSelect
	case "textarea":
		return types.FieldTextarea
	case "input":
		if t, ok := inputTypes[strings.ToLower(strings.TrimSpace(dom.Attr(n, "type")))]; ok {
			return t
		}
		return types.FieldText
	}

	switch strings.ToLower(dom.Attr(n, "role")) {
	case "combobox", "listbox":
		return types.FieldSelect
	case "textbox":
		if strings.EqualFold(dom.Attr(n, "aria-multiline"), "true") {
			return types.FieldTextarea
		}
		return types.FieldText
	}
	if dom.HasAttr(n, "contenteditable") {
		return types.FieldTextarea
	}
	return types.FieldText
}

// fieldOptions reads choices from <select> children, an associated
// <datalist>, or an ARIA listbox. Placeholder and blank entries are skipped.
func fieldOptions(doc *dom.Document, n *html.Node, fieldType types.FieldType) []types.Option {
	var items []*html.Node
	switch {
	case dom.IsTag(n, "select"):
		items = dom.QueryAll(n, func(c *html.Node) bool { return dom.IsTag(c, "option") })
	case dom.IsTag(n, "input") && dom.Attr(n, "list") != "":
		if list := doc.ByID(n, dom.Attr(n, "list")); list != nil {
			items = dom.QueryAll(list, func(c *html.Node) bool { return dom.IsTag(c, "option") })
		}
	case fieldType == types.FieldSelect:
		root := n
		if ref := doc.ByID(n, firstNonEmpty(dom.Attr(n, "aria-controls"), dom.Attr(n, "aria-owns"))); ref != nil {
			root = ref
		}
		items = dom.QueryAll(root, func(c *html.Node) bool { return strings.EqualFold(dom.Attr(c, "role"), "option") })
	}

	var options []types.Option
	for _, item := range items {
		label := firstNonEmpty(strings.TrimSpace(dom.Attr(item, "label")), dom.Text(item))
		value := dom.Attr(item, "value")
		if !dom.HasAttr(item, "value") {
			value = firstNonEmpty(dom.Attr(item, "data-value"), label)
		}
		value = strings.TrimSpace(value)
		if label == "" {
			label = value
		}
		if value == "" || label == "" {
			continue
		}
		if placeholderItem.MatchString(label) && (dom.HasAttr(item, "disabled") || !dom.HasAttr(item, "value") || value == "0" || value == "-1") {
			continue
		}
		options = append(options, types.Option{Value: value, Label: label})
	}
	return options
}

// sectionContext walks upward for the nearest preceding heading or legend,
// or a container naming its section.
func sectionContext(n *html.Node) string {
	cur := n
	for depth := 0; cur != nil && depth < maxSectionDepth; depth++ {
		for s := dom.PrevElement(cur); s != nil; s = dom.PrevElement(s) {
			if h := lastHeading(s); h != nil {
				if t := dom.Text(h); t != "" {
					return truncate(normalizeLabel(t), maxSectionLength)
				}
			}
		}

		parent := dom.ParentElement(cur)
		if parent == nil || dom.IsTag(parent, "body", "html") {
			break
		}
		if dom.IsTag(parent, "fieldset") {
			if legend := dom.Query(parent, func(c *html.Node) bool { return dom.IsTag(c, "legend") }); legend != nil {
				if t := dom.Text(legend); t != "" {
					return truncate(normalizeLabel(t), maxSectionLength)
				}
			}
		}
		if !controlSelector(parent) {
			if v := strings.TrimSpace(firstNonEmpty(dom.Attr(parent, "data-section"), dom.Attr(parent, "aria-label"))); v != "" {
				return truncate(normalizeLabel(v), maxSectionLength)
			}
		}
		cur = parent
	}
	return ""
}

// lastHeading returns n if it is a heading, else its last heading descendant.
func lastHeading(n *html.Node) *html.Node {
	if sectionHeading(n) {
		return n
	}
	headings := dom.QueryAll(n, sectionHeading)
	if len(headings) == 0 {
		return nil
	}
	return headings[len(headings)-1]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
