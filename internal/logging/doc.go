// Package logging builds the log/slog loggers used by the tabparse binary.
//
//	log := logging.New(
//	    logging.WithLevel(slog.LevelDebug),
//	    logging.WithFormat(logging.FormatJSON),
//	)
//
// Output defaults to stderr in text format at info level.
package logging
