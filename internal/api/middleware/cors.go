package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig admits browser extensions and local development pages.
// Origins may contain one "*" wildcard.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{
			"chrome-extension://*",
			"moz-extension://*",
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Length",
			"Authorization",
			"Accept",
			"Origin",
			RequestIDHeader,
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
}

// CORS creates a CORS middleware with the provided configuration. Requests
// from origins outside the list are rejected with 403.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:           cfg.AllowOrigins,
		AllowMethods:           cfg.AllowMethods,
		AllowHeaders:           cfg.AllowHeaders,
		ExposeHeaders:          []string{RequestIDHeader},
		AllowCredentials:       cfg.AllowCredentials,
		AllowWildcard:          true,
		AllowBrowserExtensions: true,
		MaxAge:                 cfg.MaxAge,
	})
}
