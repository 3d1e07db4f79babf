// Package server exposes the scanner and the session correlator to the
// browser extension over HTTP.
//
// The extension posts serialized pages (or all frames of a tab) and gets
// back a PageScan, optionally tracked into a session. Session CRUD, the
// dispatch slot, the domain policy, the per-tab overlay registry, the
// generated-artifact history and the matching backend are reachable through
// the same router.
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Build the store, scanner, session manager and backend client
//  3. Setup HTTP routes and middleware
//  4. Serve until the context is cancelled, then shut down gracefully
//
// Example Usage:
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:8000"}, deps)
//	if err := srv.Run(ctx); err != nil {
//	    logger.Fatal("server stopped", zap.Error(err))
//	}
package server
