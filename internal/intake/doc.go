// Package intake defines the subscriber types, outcomes and collaborator
// interfaces shared by the forwarding pipeline, plus the request validator.
//
// Nothing in this package performs I/O. Backends (listmonk, backup stores,
// notification channels) live in their own packages and satisfy the
// interfaces declared in interfaces.go.
package intake
