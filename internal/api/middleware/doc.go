// Package middleware provides the HTTP middleware of the jobscan glue API.
//
// Middleware stack includes:
//   - RequestID: propagates or assigns X-Request-ID
//   - Logger: one zap line per request, level by status
//   - Recovery: panic recovery with a JSON 500
//   - CORS: browser extension and local development origins only
//   - RateLimit: per-IP token bucket with idle client eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
