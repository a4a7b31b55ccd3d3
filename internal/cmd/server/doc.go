// Package serverrun exposes the Run entrypoint used by the CLI to start the
// spool runtime with its HTTP and gRPC servers and the background flush
// loop, handling lifecycle and shutdown.
//
// Example:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: config.Default()})
package serverrun
