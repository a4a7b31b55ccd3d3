// Package runtime wires storage, codec, engine and channel into a
// single-node spool instance. It exposes Open/Close, a health check, and
// accessors used by the HTTP and gRPC servers and the CLI.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	_ = rt.Channel().Enqueue(ctx, "default", codec.Record{Type: "event"})
package runtime
