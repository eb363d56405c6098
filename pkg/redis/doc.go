// Package redis connects the service to the Redis node backing the shared
// guardrail counters.
//
// It wraps go-redis with a retrying Connect, an env-driven Config, and a
// health check closure. The returned client is handed to
// counter.NewRedisStore; nothing else in the service talks to Redis
// directly.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store, err := counter.NewRedisStore(client)
package redis
