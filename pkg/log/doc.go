// Package log provides spool's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by the standard library's
// slog through a bridge handler that feeds our formatter/output pipeline.
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("persistence"))
//	l.Info("lease issued", log.Group("analytics"), log.Int("records", 50))
//
// ApplyConfig builds a logger from a declarative Config (text or JSON,
// console/file/null outputs, key redaction, sampling). RedirectStdLog routes
// the standard logger, which Pebble writes to by default, through a Logger.
package log
