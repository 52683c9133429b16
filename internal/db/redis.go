package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/younes-bami/hrcut-app/internal/config"
)

// RedisOpts configures the client backing the login rate limiter.
type RedisOpts struct {
	Addr        string // host:port or redis:// URL; empty disables Redis
	Password    string
	DB          int
	DialTimeout time.Duration // default 5s
}

func RedisOptsFrom(c config.RedisConfig) RedisOpts {
	return RedisOpts{Addr: c.Addr, Password: c.Password, DB: c.DB, DialTimeout: c.DialTimeout}
}

// NewRedisClient returns (nil, nil) when no address is configured.
func NewRedisClient(opts RedisOpts) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, nil
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	ro := &redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	if strings.HasPrefix(opts.Addr, "redis://") || strings.HasPrefix(opts.Addr, "rediss://") {
		parsed, err := redis.ParseURL(opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		ro = parsed
		if opts.Password != "" {
			ro.Password = opts.Password
		}
	}
	ro.DialTimeout = opts.DialTimeout

	rdb := redis.NewClient(ro)
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", ro.Addr, err)
	}

	return rdb, nil
}
