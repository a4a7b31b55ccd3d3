// Package client provides the client commands of the `spool` CLI.
//
// The commands talk to a running spool server: the admin HTTP API for group
// operations and the gRPC health service for `health`.
//
// # Address configuration
//
// The HTTP base URL is supplied by the embedding application via a
// BaseURLFunc. The standalone binary reads SPOOL_HTTP and defaults to
// http://127.0.0.1:8080. The gRPC address is read from SPOOL_GRPC
// (default 127.0.0.1:9090).
//
// Usage
//
//	spool groups
//	spool put default --type event --payload '{"k":"v"}' --attr source=cli
//	spool count default
//	spool flush default
//	spool purge default --confirm
//	spool clear --confirm
//	spool health
package client
