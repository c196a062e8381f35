package redis

import "time"

// Config holds the connection settings for the redis instance serving the
// setting cache. It is populated from REDIS_* environment variables,
// typically through pkg/config.
type Config struct {
	// ConnectionURL in the "redis://:password@host:port/db" form.
	ConnectionURL string `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`

	// Startup connect retries and the per-attempt dial timeout.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}
