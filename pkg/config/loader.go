package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Load populates the configuration struct from environment variables based on
// its `env` field tags. A .env file in the working directory, if present, is
// loaded once per process before the first parse.
//
// Example:
//
//	type CacheConfig struct {
//	    URL string        `env:"REDIS_URL,required"`
//	    TTL time.Duration `env:"SETTING_CACHE_TTL" envDefault:"5m"`
//	}
//
//	var cfg CacheConfig
//	if err := config.Load(&cfg); err != nil {
//	    // handle error
//	}
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional; missing is fine.
		_ = godotenv.Load()
	})

	if v == nil {
		return ErrNilPointer
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingFailed, err)
	}

	return nil
}
