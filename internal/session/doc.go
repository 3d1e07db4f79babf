// Package session correlates page scans into logical job-application
// sessions.
//
// A session id is derived from page content (domain, company, title and the
// job identifier of the URL), so independent loads of the same job land in
// the same session without any shared handle. Sessions live in a single
// MRU-ordered record in a storage.Store; expiry is evaluated lazily on every
// read and write. A single-slot dispatch record links the session a user is
// leaving to whatever session appears next on the same root domain, which
// keeps a chain intact across single-page-app navigations.
//
// Storage failures never escape the Manager: reads degrade to empty values
// and writes are logged.
package session
