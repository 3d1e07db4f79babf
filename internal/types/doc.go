// Package types holds the records shared between the scanner, the session
// correlator and the glue API: PageScan and its descriptors, Session and
// SpaDispatch.
package types
