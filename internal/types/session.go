package types

import "time"

// Session is the logical record of one job application spanning possibly
// many page loads. Only the session package writes it.
type Session struct {
	ID              string            `json:"id"`
	Domain          string            `json:"domain"`
	JobIdentifier   string            `json:"job_identifier"`
	Company         string            `json:"company,omitempty"`
	Title           string            `json:"title,omitempty"`
	Description     string            `json:"description,omitempty"`
	Fields          []FieldDescriptor `json:"fields"`
	LastScan        *PageScan         `json:"last_scan,omitempty"`
	NavigationLinks []string          `json:"navigation_links"`
	ParentID        string            `json:"parent_id,omitempty"`
	VisitedURLs     []string          `json:"visited_urls"`
	CreatedAt       time.Time         `json:"created_at"`
	LastAccessedAt  time.Time         `json:"last_accessed_at"`
}

// SpaDispatch hands a session off to whatever session appears next on the
// same root domain.
type SpaDispatch struct {
	Domain    string    `json:"domain"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}
