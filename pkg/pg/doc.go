// Package pg provides the PostgreSQL bootstrap layer for the notification
// settings storage: connection pooling via pgx/v5, schema migrations via
// goose/v3, a health check closure, and error classification helpers.
//
// The API surface is intentionally small. Config is populated from
// environment variables (see the field tags), Connect opens a retrying
// *pgxpool.Pool, and Migrate brings the settings schema up to date before
// the service starts accepting writes.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//	    panic(err)
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    panic(err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    panic(err)
//	}
//
//	storage := prefs.NewPostgresStorage(pool)
//
// Error helpers such as [IsDuplicateKeyError] make constraint violations
// trivial to classify inside business logic.
package pg
