package backend

import (
	"github.com/GriffinCanCode/jobscan/internal/types"
)

// ScanPayload is what Initiate submits.
type ScanPayload struct {
	SessionID       string                  `json:"session_id,omitempty"`
	URL             string                  `json:"url"`
	Domain          string                  `json:"domain,omitempty"`
	Company         string                  `json:"company,omitempty"`
	Title           string                  `json:"title,omitempty"`
	Description     string                  `json:"description,omitempty"`
	Fields          []types.FieldDescriptor `json:"fields"`
	MultiStep       bool                    `json:"multi_step"`
	EstimatedStep   int                     `json:"estimated_step,omitempty"`
	NavigationLinks []string                `json:"navigation_links,omitempty"`
}

// PayloadFrom builds a payload from a scan, preferring the accumulated
// session data when sess is non-nil.
func PayloadFrom(scan *types.PageScan, sess *types.Session) ScanPayload {
	p := ScanPayload{
		URL:             scan.URL,
		Company:         scan.Company(),
		Title:           scan.JobTitle(),
		Description:     scan.Description(),
		Fields:          scan.Fields,
		MultiStep:       scan.MultiPage,
		EstimatedStep:   scan.EstimatedStep,
		NavigationLinks: scan.NavigationLinks,
	}
	if sess == nil {
		return p
	}

	p.SessionID = sess.ID
	p.Domain = sess.Domain
	if sess.Company != "" {
		p.Company = sess.Company
	}
	if sess.Title != "" {
		p.Title = sess.Title
	}
	if sess.Description != "" {
		p.Description = sess.Description
	}
	if len(sess.Fields) > 0 {
		p.Fields = sess.Fields
	}
	return p
}

// FieldValue is a value the backend wants written into a field.
type FieldValue struct {
	FieldID string `json:"field_id"`
	Value   string `json:"value"`
}

// Initiation is the answer to Initiate.
type Initiation struct {
	SessionRef      string       `json:"session_ref"`
	MultiStep       bool         `json:"multi_step"`
	JobID           string       `json:"job_id,omitempty"`
	ImmediateFields []FieldValue `json:"immediate_fields"`
}

// FileRef points at a generated document.
type FileRef struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
}

// Generated holds the documents produced for a job.
type Generated struct {
	Resume      *FileRef `json:"resume,omitempty"`
	CoverLetter *FileRef `json:"cover_letter,omitempty"`
}

// Result is the completed output of a job.
type Result struct {
	OverallMatch       float64   `json:"overall_match"`
	CanApply           bool      `json:"can_apply"`
	RequirementsNotMet []string  `json:"requirements_not_met,omitempty"`
	Generated          Generated `json:"generated"`
	ResultRef          string    `json:"result_ref"`
}

// JobState is the lifecycle state of an asynchronous job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further updates will follow.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is one status report for a job.
type JobStatus struct {
	JobID    string   `json:"job_id"`
	State    JobState `json:"status"`
	Progress float64  `json:"progress,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Outcome is everything Apply learned.
type Outcome struct {
	Initiation Initiation
	Result     *Result
}

type forceApplyRequest struct {
	JobID string `json:"job_id"`
}

type forceApplyResponse struct {
	JobID string `json:"job_id"`
}

type apiErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
