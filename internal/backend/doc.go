// Package backend is the client for the remote matching and generation
// service.
//
// The service is consumed through four calls: Initiate submits a scanned
// application and returns fields that can be filled immediately plus an
// optional asynchronous job; Status and Result follow that job; ForceApply
// re-runs a job whose requirements were not met. Job completion is awaited
// either by polling Status or by subscribing to the job's websocket stream.
//
// Transport stack:
//   - resty for request building and JSON decoding (sonic codec)
//   - go-retryablehttp underneath for retries with backoff on 5xx and
//     connection errors
//   - a circuit breaker so a failing backend is not hammered
//   - an x/time/rate limiter shared by every call
//
// Example:
//
//	client := backend.New(cfg, logger, metrics, backend.WithHistory(h))
//	outcome, err := client.Apply(ctx, backend.PayloadFrom(scan, sess), fill)
package backend
