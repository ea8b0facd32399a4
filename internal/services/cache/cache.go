// Package cache keeps the candidate organization pool in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"case-disposition-engine/internal/config"
	"case-disposition-engine/internal/metrics"
	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/utils"
)

// CandidatesKey is the Redis key holding the serialized candidate pool.
const CandidatesKey = "casematch:orgs:candidates"

// OrganizationSource loads the candidate pool from the system of record.
type OrganizationSource interface {
	ListCandidates(ctx context.Context) ([]*models.Organization, error)
}

// NewRedisClient creates a Redis client from config. Returns nil when Redis is not configured.
func NewRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.CacheEnabled() {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// OrgCache is a cache-aside wrapper around an OrganizationSource.
// With a nil client every call goes straight to the source.
type OrgCache struct {
	client *redis.Client
	source OrganizationSource
	ttl    time.Duration
	logger *zap.Logger
}

// NewOrgCache creates an organization pool cache.
func NewOrgCache(client *redis.Client, source OrganizationSource, ttl time.Duration) *OrgCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OrgCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: utils.Component("org-cache"),
	}
}

// Enabled reports whether Redis backs the cache.
func (c *OrgCache) Enabled() bool {
	return c.client != nil
}

// ListCandidates returns the candidate pool, from Redis when present.
// Redis failures fall back to the source and are logged, never returned.
func (c *OrgCache) ListCandidates(ctx context.Context) ([]*models.Organization, error) {
	if c.client == nil {
		return c.source.ListCandidates(ctx)
	}

	val, err := c.client.Get(ctx, CandidatesKey).Bytes()
	switch {
	case err == nil:
		var orgs []*models.Organization
		if jsonErr := json.Unmarshal(val, &orgs); jsonErr == nil {
			metrics.OrgCacheRequestsTotal.WithLabelValues("hit").Inc()
			return orgs, nil
		}
		c.logger.Warn("Discarding unreadable organization cache entry", utils.String("key", CandidatesKey))
		metrics.OrgCacheRequestsTotal.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.OrgCacheRequestsTotal.WithLabelValues("miss").Inc()
	default:
		c.logger.Warn("Organization cache read failed", utils.Error(err))
		metrics.OrgCacheRequestsTotal.WithLabelValues("error").Inc()
	}

	orgs, err := c.source.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(orgs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode organizations: %w", err)
	}
	if err := c.client.Set(ctx, CandidatesKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Organization cache write failed", utils.Error(err))
	}

	return orgs, nil
}

// Invalidate drops the cached pool, e.g. after organization loads change.
func (c *OrgCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, CandidatesKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate organization cache: %w", err)
	}
	return nil
}

// Ping tests the Redis connection.
func (c *OrgCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
