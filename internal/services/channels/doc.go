// Package channelsvc drives a persistence engine: it admits records into
// groups and flushes leased batches to the ingestion service.
//
// Service is the single writer of its engine. Every engine call happens
// under one mutex, while sends run outside it so enqueueing never waits on
// the network. Delivery is at-least-once: a recoverable send failure
// abandons every outstanding lease and the rows are sent again later.
//
// Example:
//
//	svc, _ := channelsvc.New(engine, sender, channelsvc.Config{Groups: []string{"analytics"}})
//	_ = svc.Enqueue(ctx, "analytics", codec.Record{Type: "event", Payload: body})
//	sent, _ := svc.Flush(ctx, "analytics")
//	_ = svc.Run(ctx) // periodic flush until ctx is done
package channelsvc
