// Package log provides the structured logging abstraction used by every pit
// component.
//
// Components accept a [Logger] and never log through package globals. The
// zerolog adapter is what the pit command wires in; the no-op logger is for
// tests and embedders that bring their own output.
//
//	logger := log.NewZerologAdapter(log.Options{Level: "debug"})
//	logger.Info("connected", log.String("broker", addr))
//
// The adapter's level can be changed at runtime with SetLevel, which the
// config watcher uses to apply log_level edits without a restart.
package log
