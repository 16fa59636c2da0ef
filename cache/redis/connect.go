package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
)

// ConnectOptions controls Connect's retry loop.
type ConnectOptions struct {
	RetryAttempts  int
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
}

// DefaultConnectOptions are used for zero fields.
var DefaultConnectOptions = ConnectOptions{
	RetryAttempts:  3,
	RetryInterval:  2 * time.Second,
	ConnectTimeout: 30 * time.Second,
}

// Connect parses url and pings the server until it answers or the attempts
// run out.
func Connect(ctx context.Context, url string, opts ConnectOptions) (*redis.Client, error) {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = DefaultConnectOptions.RetryAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultConnectOptions.RetryInterval
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectOptions.ConnectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	for range opts.RetryAttempts {
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(opts.RetryInterval):
		}
	}

	return nil, ErrRedisNotReady
}
