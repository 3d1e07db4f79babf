/*
Package monitoring provides Prometheus metrics for jobscan.

# Overview

Collectors cover the HTTP API, extraction passes (outcome, field counts,
hydration retries, skipped frames), the session correlator (lifecycle events,
dispatch hand-offs) and the matching backend client.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "initiate")
	// ... call the backend ...
	timer.Stop("success")

A nil *Metrics is valid and records nothing.
*/
package monitoring
