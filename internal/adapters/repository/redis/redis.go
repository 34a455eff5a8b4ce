// Package redis keeps group counters in a Redis hash and play history in
// capped per-group lists.
package redis

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "playstats"

// Commands.
const (
	commandAuth    = "AUTH"
	commandExec    = "EXEC"
	commandHGet    = "HGET"
	commandHGetAll = "HGETALL"
	commandHIncrBy = "HINCRBY"
	commandLPush   = "LPUSH"
	commandLRange  = "LRANGE"
	commandLTrim   = "LTRIM"
	commandMulti   = "MULTI"
	commandPing    = "PING"
)

// Defaults.
const (
	defaultIdleTimeout = 240 * time.Second
	defaultMaxIdle     = 10
	defaultNetwork     = "tcp"
)

type dialFunc func(ctx context.Context) (redis.Conn, error)

// Pool returns a connection pool for addr, authenticating with password
// when it is set.
func Pool(addr, password string) *redis.Pool {
	return &redis.Pool{
		DialContext:  dial(addr, password),
		IdleTimeout:  defaultIdleTimeout,
		MaxIdle:      defaultMaxIdle,
		TestOnBorrow: borrow,
	}
}

func borrow(c redis.Conn, t time.Time) error {
	if time.Since(t) < time.Minute {
		return nil
	}

	_, err := c.Do(commandPing)
	return err
}

func dial(addr, password string) dialFunc {
	return func(ctx context.Context) (redis.Conn, error) {
		c, err := redis.DialContext(ctx, defaultNetwork, addr)
		if err != nil {
			return nil, err
		}

		if password != "" {
			if _, err := c.Do(commandAuth, password); err != nil {
				c.Close()

				return nil, err
			}
		}

		return c, nil
	}
}
