// Package logger provides a slog-based logger factory and typed attribute
// helpers for the domain: providers, alert types, recipients, and scopes.
//
// The helpers keep log attribute keys consistent across the codebase:
//
//	log := logger.New(logger.WithFormat(logger.FormatJSON))
//	log.LogAttrs(ctx, slog.LevelWarn, "Projection rebuild failed",
//	    logger.Recipient("user", 42),
//	    logger.Error(err),
//	)
package logger
