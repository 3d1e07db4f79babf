// Package config provides 12-factor configuration management for jobscan.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
// Listing heuristics can additionally be tuned from a YAML file.
//
// Configuration Sections:
//   - Server: glue API listen address, CORS origins, body limit
//   - Logging: Log level and output format
//   - RateLimit: Per-client API rate limiting
//   - Storage: SQLite path (empty keeps state in memory)
//   - Scanner: hydration retries, frame timeout, heuristics file
//   - Session: session TTL, capacity, dispatch window
//   - Backend: matching backend URL, token, retries, polling
//   - Browser: live page rendering and navigation observation
//   - Domains: allow and deny host patterns
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	opts, err := cfg.ScannerOptions()
//
// Environment Variables:
//   - JOBSCAN_PORT, JOBSCAN_HOST, JOBSCAN_ALLOWED_ORIGINS, JOBSCAN_DB
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - JOBSCAN_SCAN_ATTEMPTS, JOBSCAN_SCAN_DELAY, JOBSCAN_HEURISTICS
//   - JOBSCAN_SESSION_TTL, JOBSCAN_SESSION_CAPACITY, JOBSCAN_DISPATCH_WINDOW
//   - JOBSCAN_BACKEND_URL, JOBSCAN_BACKEND_TOKEN, JOBSCAN_BACKEND_STREAM
//   - JOBSCAN_ALLOW_DOMAINS, JOBSCAN_DENY_DOMAINS
//
// Heuristics file example:
//
//	apply_weight: 0.35
//	listing_threshold: 0.5
package config
