// Package redis provides connection bootstrap for the Redis server backing
// the optional notification setting cache: URL-based configuration, retrying
// Connect, and a health check closure.
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    panic(err)
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    panic(err)
//	}
//
//	cache := prefs.NewRedisCache(client, 0)
//	manager := prefs.NewManager(storage, prefs.WithSettingCache(cache))
package redis
