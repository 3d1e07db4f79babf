package types

import "time"

// FieldType is the normalized control type of a form field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldTel      FieldType = "tel"
	FieldURL      FieldType = "url"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldTextarea FieldType = "textarea"
	FieldFile     FieldType = "file"
	FieldDate     FieldType = "date"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
)

// Option is one choice of a select or datalist.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDescriptor describes one fillable control found by a scan.
type FieldDescriptor struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           FieldType `json:"type"`
	Label          string    `json:"label"`
	Placeholder    string    `json:"placeholder,omitempty"`
	Options        []Option  `json:"options,omitempty"`
	SectionContext string    `json:"section_context"`
	Required       bool      `json:"required,omitempty"`
}

// ActionKind classifies a clickable control.
type ActionKind string

const (
	ActionSubmit     ActionKind = "SUBMIT"
	ActionPrevious   ActionKind = "PREVIOUS"
	ActionNavigation ActionKind = "NAVIGATION"
)

// ActionDescriptor describes one classified button or link.
type ActionDescriptor struct {
	ID       string     `json:"id"`
	Kind     ActionKind `json:"kind"`
	Text     string     `json:"text"`
	Selector string     `json:"selector"`
}

// Listing is the job-list classification of a page.
type Listing struct {
	IsListing      bool    `json:"is_listing"`
	Confidence     float64 `json:"confidence"`
	EstimatedCount int     `json:"estimated_count"`
}

// PageScan is the result of one extraction pass. A new value is produced on
// every scan; callers replace, never patch, a previous scan.
type PageScan struct {
	URL                   string             `json:"url"`
	Title                 string             `json:"title"`
	CompanyCandidates     []string           `json:"company_candidates"`
	TitleCandidates       []string           `json:"title_candidates"`
	DescriptionCandidates []string           `json:"description_candidates"`
	Fields                []FieldDescriptor  `json:"fields"`
	Actions               []ActionDescriptor `json:"actions"`
	FlowTriggers          []ActionDescriptor `json:"flow_triggers,omitempty"`
	MultiPage             bool               `json:"multi_page"`
	EstimatedStep         int                `json:"estimated_step"`
	Listing               Listing            `json:"listing"`
	NavigationLinks       []string           `json:"navigation_links"`
	ScannedAt             time.Time          `json:"scanned_at"`
}

// HasPrevious reports whether the scan found a previous-style control.
func (s *PageScan) HasPrevious() bool {
	for _, a := range s.Actions {
		if a.Kind == ActionPrevious {
			return true
		}
	}
	return false
}

// Empty reports whether the scan carries no usable data at all.
func (s *PageScan) Empty() bool {
	return len(s.Fields) == 0 &&
		len(s.Actions) == 0 &&
		len(s.CompanyCandidates) == 0 &&
		len(s.TitleCandidates) == 0 &&
		len(s.DescriptionCandidates) == 0
}

// Company returns the top company candidate, or "".
func (s *PageScan) Company() string { return first(s.CompanyCandidates) }

// JobTitle returns the top title candidate, or "".
func (s *PageScan) JobTitle() string { return first(s.TitleCandidates) }

// Description returns the top description candidate, or "".
func (s *PageScan) Description() string { return first(s.DescriptionCandidates) }

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
