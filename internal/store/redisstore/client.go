// Package redisstore publishes solved assignments to Redis so cache nodes can
// fetch the items they should hold. The optimiser never reads them back.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/cache-placement/internal/core/model"
	"github.com/mohammed-shakir/cache-placement/internal/core/observability"
	"github.com/mohammed-shakir/cache-placement/internal/store/keys"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveSinkOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Publication is what one solve writes: the assignment, an opaque summary
// blob and the input name the latest pointer is kept under.
type Publication struct {
	RunKey     string
	Input      string
	Assignment model.Assignment
	Summary    []byte
}

// PutAssignment writes one key per non-empty cache, the summary, and the
// latest pointer for the input in a single pipeline.
func (c *Client) PutAssignment(ctx context.Context, pub Publication, ttl time.Duration) error {
	if pub.RunKey == "" {
		return errors.New("redis put assignment: empty run key")
	}
	start := time.Now()
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, cid := range pub.Assignment.CacheIDs() {
			items := pub.Assignment[cid]
			if len(items) == 0 {
				continue
			}
			p.Set(ctx, keys.CacheKey(pub.RunKey, cid), encodeItems(items), ttl)
		}
		if len(pub.Summary) > 0 {
			p.Set(ctx, keys.SummaryKey(pub.RunKey), pub.Summary, ttl)
		}
		if pub.Input != "" {
			p.Set(ctx, keys.LatestKey(pub.Input), pub.RunKey, ttl)
		}
		return nil
	})
	observability.ObserveSinkOp("put_assignment", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis put assignment %q (pipeline): %w", pub.RunKey, err)
	}
	return nil
}

// GetCache returns the items published for one cache of a run. ok is false
// when the run left that cache empty or the key expired.
func (c *Client) GetCache(ctx context.Context, runKey string, cacheID int) (items []int, ok bool, err error) {
	start := time.Now()
	s, err := c.rdb.Get(ctx, keys.CacheKey(runKey, cacheID)).Result()
	if errors.Is(err, redis.Nil) {
		observability.ObserveSinkOp("get_cache", nil, time.Since(start).Seconds())
		return nil, false, nil
	}
	observability.ObserveSinkOp("get_cache", err, time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("redis GET cache %d of %q: %w", cacheID, runKey, err)
	}
	items, err = decodeItems(s)
	if err != nil {
		return nil, false, fmt.Errorf("redis decode cache %d of %q: %w", cacheID, runKey, err)
	}
	return items, true, nil
}

// Latest returns the run key last published for an input name.
func (c *Client) Latest(ctx context.Context, input string) (string, bool, error) {
	start := time.Now()
	s, err := c.rdb.Get(ctx, keys.LatestKey(input)).Result()
	if errors.Is(err, redis.Nil) {
		observability.ObserveSinkOp("latest", nil, time.Since(start).Seconds())
		return "", false, nil
	}
	observability.ObserveSinkOp("latest", err, time.Since(start).Seconds())
	if err != nil {
		return "", false, fmt.Errorf("redis GET latest %q: %w", input, err)
	}
	return s, true, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

// same layout as one line of the output file, minus the cache id
func encodeItems(items []int) string {
	var b strings.Builder
	for i, v := range items {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func decodeItems(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", f, model.ErrInvalidValue)
		}
		out = append(out, v)
	}
	return out, nil
}
