// Package main hosts the mailproxy entrypoint.
//
// mailproxy sits between a public signup form and a listmonk instance. A form
// posts {email, status, name?, lists?} to POST /maildata; the proxy validates it,
// creates the subscriber in listmonk with privileged credentials, records a
// backup copy and sends a best-effort notification. The caller only ever sees
// one of a fixed set of response messages.
//
// Operational notes:
//   - Configuration comes from an optional YAML file (-config) and MAILPROXY_*
//     environment variables. The bare PORT, lmuser, lmpass and
//     discordWebHookURL variables are honored for older deployments.
//   - Backups go to memory, postgres, redis or gcs (backup.driver); "none"
//     disables them. Notifications go to a Discord-style webhook, a Pub/Sub
//     topic, or the log (notify.driver).
//   - /healthz and /readyz serve liveness and readiness checks; /metrics exposes Prometheus
//     collectors. SIGINT/SIGTERM drain in-flight requests before exit.
//
// Run locally:
//
//	MAILPROXY_LISTMONK_USERNAME=api MAILPROXY_LISTMONK_PASSWORD=secret \
//	  go run ./cmd/mailproxy -config config.yaml
package main
