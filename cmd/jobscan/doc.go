// Command jobscan scans job-application pages and tracks application
// sessions across them.
//
// Subcommands:
//
//	jobscan scan page.html 'saved/**/*.html'   scan saved pages
//	jobscan fetch https://jobs.example.com/1   render with Chrome and scan every frame
//	jobscan watch https://jobs.example.com/1   re-scan on each SPA navigation
//	jobscan serve                              run the HTTP API for the browser extension
//
// Configuration comes from the environment (JOBSCAN_*, LOG_LEVEL, LOG_DEV);
// flags override it.
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
package main
