// Package id provides a 128-bit, lexicographically sortable identifier.
//
// The ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence], so
// byte order is chronological order. Spool stamps each buffered record with
// one at enqueue time so the ingestion service can de-duplicate redeliveries.
//
//	g := id.NewGenerator()
//	rid := g.Next()
//	s := rid.String() // 32 hex chars
//	back, _ := id.Parse(s)
package id
