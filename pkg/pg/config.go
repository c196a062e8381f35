package pg

import "time"

// Config holds the pool and migration settings for the Postgres instance
// backing the notification settings tables. It is populated from PG_*
// environment variables, typically through pkg/config.
type Config struct {
	// ConnectionString is the pgx connection URL of the settings database.
	ConnectionString string `env:"PG_CONN_URL,required"`

	// Pool sizing. The defaults suit a single service instance; raise them
	// when several workers share one pool.
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`

	// Startup connect retries, for databases that come up after the service.
	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`

	// Goose migration source directory and version table.
	MigrationsPath  string `env:"PG_MIGRATIONS_PATH" envDefault:"migrations"`
	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"goose_db_version"`
}
