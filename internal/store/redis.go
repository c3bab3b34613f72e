package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the Redis connection settings for the market store.
type Config struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	DB           int           `yaml:"db"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

// Addr returns the host:port address for the configured store.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewDialer returns a Dialer that creates Redis-backed connections.
// The returned connection has not been pinged.
func NewDialer(cfg Config) Dialer {
	return func(ctx context.Context) (Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Addr(),
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
		return &redisConn{client: client}, nil
	}
}

// redisConn implements Conn on top of a go-redis client.
type redisConn struct {
	client *redis.Client
}

func (c *redisConn) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisConn) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

func (c *redisConn) HMGet(ctx context.Context, key string, fields ...string) ([]string, error) {
	vals, err := c.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected value type %T for field %s", v, fields[i])
		}
		out[i] = s
	}
	return out, nil
}

func (c *redisConn) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return c.client.HSet(ctx, key, hashArgs(fields)...).Err()
}

func (c *redisConn) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return c.client.HDel(ctx, key, fields...).Err()
}

func (c *redisConn) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (c *redisConn) Pipelined(ctx context.Context, fn func(Pipe)) error {
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		fn(&redisPipe{ctx: ctx, pipe: p})
		return nil
	})
	return err
}

func (c *redisConn) Close() error {
	return c.client.Close()
}

// redisPipe adapts a go-redis pipeliner to the Pipe interface.
type redisPipe struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (p *redisPipe) HSet(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	p.pipe.HSet(p.ctx, key, hashArgs(fields)...)
}

func (p *redisPipe) HDel(key string, fields ...string) {
	if len(fields) == 0 {
		return
	}
	p.pipe.HDel(p.ctx, key, fields...)
}

func hashArgs(fields map[string]string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
