// Package logging builds the process logger.
//
// Components do not receive loggers explicitly; they derive one from the
// slog default with a component attribute:
//
//	logger := slog.Default().With("component", "sink.queue")
//
// Setup installs the configured handler as that default.
package logging
