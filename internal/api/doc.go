// Package api exposes the subscriber intake endpoint and the operational
// health checks over HTTP.
//
// Routes:
//
//	POST /maildata  submit a subscriber, always answers {"response_message": ...}
//	GET  /healthz   liveness
//	GET  /readyz    pings the backup store
//	GET  /metrics   Prometheus exposition
package api
