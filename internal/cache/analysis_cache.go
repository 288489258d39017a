// Package cache puts a redis read-through cache in front of the analysis store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"tradeanalytics/internal/metrics"
	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

// ErrMiss is returned by a Backend when the key does not exist.
var ErrMiss = errors.New("cache miss")

type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type RedisBackend struct {
	Client redis.UniversalClient
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.Client.Set(ctx, key, value, ttl).Err()
}

func (b *RedisBackend) Del(ctx context.Context, keys ...string) error {
	return b.Client.Del(ctx, keys...).Err()
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient connects and pings once so a bad address fails at startup.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// AnalysisCache decorates an AnalysisStore. Owner documents are served from
// the backend when present and dropped from it on every write to their key.
// Backend failures never fail a call; the breaker stops hammering a dead backend.
type AnalysisCache struct {
	repository.AnalysisStore

	Backend Backend
	TTL     time.Duration
	Prefix  string
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	cb *gobreaker.CircuitBreaker
}

func NewAnalysisCache(next repository.AnalysisStore, backend Backend, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *AnalysisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := &AnalysisCache{
		AnalysisStore: next,
		Backend:       backend,
		TTL:           ttl,
		Prefix:        "ta",
		Logger:        logger,
		Metrics:       m,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "analysis-cache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && ratio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

func (c *AnalysisCache) key(k models.AnalysisKey) string {
	return c.Prefix + ":analysis:" + k.Scope + ":" + k.OwnerID
}

func (c *AnalysisCache) GetAnalysisDocument(ctx context.Context, key models.AnalysisKey) (*models.AnalysisDocument, error) {
	if c.Backend != nil {
		raw, err := c.cb.Execute(func() (any, error) {
			return c.Backend.Get(ctx, c.key(key))
		})
		switch {
		case err == nil:
			var doc models.AnalysisDocument
			if uerr := json.Unmarshal(raw.([]byte), &doc); uerr == nil {
				c.Metrics.CacheResult("hit")
				return &doc, nil
			}
			c.Logger.Warn("dropping undecodable cache entry", zap.String("key", c.key(key)))
			c.invalidate(ctx, key)
		case errors.Is(err, ErrMiss):
			c.Metrics.CacheResult("miss")
		default:
			c.Metrics.CacheResult("error")
			c.Logger.Debug("cache read failed", zap.String("key", c.key(key)), zap.Error(err))
		}
	}

	doc, err := c.AnalysisStore.GetAnalysisDocument(ctx, key)
	if err != nil || doc == nil {
		return doc, err
	}
	c.store(ctx, key, doc)
	return doc, nil
}

func (c *AnalysisCache) UpsertAnalysisDocument(ctx context.Context, doc *models.AnalysisDocument) error {
	if err := c.AnalysisStore.UpsertAnalysisDocument(ctx, doc); err != nil {
		return err
	}
	c.invalidate(ctx, doc.Key())
	return nil
}

func (c *AnalysisCache) SetAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) error {
	if err := c.AnalysisStore.SetAnchor(ctx, key, anchor); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

func (c *AnalysisCache) UpdateAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) (bool, error) {
	ok, err := c.AnalysisStore.UpdateAnchor(ctx, key, anchor)
	if err != nil {
		return ok, err
	}
	c.invalidate(ctx, key)
	return ok, nil
}

func (c *AnalysisCache) store(ctx context.Context, key models.AnalysisKey, doc *models.AnalysisDocument) {
	if c.Backend == nil {
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if _, err := c.cb.Execute(func() (any, error) {
		return nil, c.Backend.Set(ctx, c.key(key), raw, c.TTL)
	}); err != nil {
		c.Logger.Debug("cache write failed", zap.String("key", c.key(key)), zap.Error(err))
	}
}

func (c *AnalysisCache) invalidate(ctx context.Context, key models.AnalysisKey) {
	if c.Backend == nil {
		return
	}
	if _, err := c.cb.Execute(func() (any, error) {
		return nil, c.Backend.Del(ctx, c.key(key))
	}); err != nil {
		c.Logger.Warn("cache invalidation failed", zap.String("key", c.key(key)), zap.Error(err))
	}
}
