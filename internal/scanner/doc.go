// Package scanner extracts job-application data from a parsed page.
//
// One pass over a dom.Document produces a types.PageScan:
//   - labels: ordered label inference for a form control
//   - fields: form control discovery, typing, options and section context
//   - buttons: tiered action classification, flow triggers, step detection
//   - metadata: company, title and description candidates
//   - listing: weighted job-list versus job-detail scoring
//
// Scanner composes the extractors, retries script-rendered pages that show
// no fields yet, and aggregates scans from several frames of one tab.
// Every strategy is best-effort: a miss falls through to the next strategy
// and the worst case is an empty result, never an error.
package scanner
