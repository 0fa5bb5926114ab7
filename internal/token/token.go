// Package token supplies per-user bearer credentials for export sources.
//
// The OAuth consent and refresh dance happens outside this binary; whatever
// runs it is modeled as an inner Provider. This package adds the Redis cache
// in front of it and a static single-token provider for development.
package token

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/source"
)

// keyPrefix namespaces credential keys so the cache can share a Redis DB
// with other deployments.
const keyPrefix = "pulse:token:"

// Provider yields a bearer token for a user. Satisfies source.TokenProvider.
type Provider interface {
	BearerToken(ctx context.Context, userID int64) (string, error)
}

// Static returns the same token for every user. Empty tokens are rejected at
// call time rather than construction so a partially configured environment
// fails on first use with a recognizable error.
type Static struct {
	Token string
}

// NewStatic builds a fixed-token provider.
func NewStatic(token string) Static {
	return Static{Token: token}
}

// BearerToken returns the configured token.
func (s Static) BearerToken(ctx context.Context, userID int64) (string, error) {
	if s.Token == "" {
		return "", eris.Wrap(source.ErrAuthInvalid, "token: static token not configured")
	}
	return s.Token, nil
}

// Cache fronts an inner Provider with a Redis credential cache. A hit skips
// the inner provider entirely; a miss delegates and stores the fresh token
// with the configured expiry.
type Cache struct {
	client *redis.Client
	inner  Provider
	ttl    time.Duration
}

// NewCache builds a Redis-backed provider. inner may be nil, in which case a
// cache miss is a hard authentication failure.
func NewCache(client *redis.Client, inner Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 55 * time.Minute
	}
	return &Cache{client: client, inner: inner, ttl: ttl}
}

// BearerToken returns the cached token for userID, refreshing through the
// inner provider on a miss. Redis outages degrade to the inner provider so a
// cache restart does not block ingestion.
func (c *Cache) BearerToken(ctx context.Context, userID int64) (string, error) {
	key := cacheKey(userID)

	tok, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return tok, nil
	case err == redis.Nil:
		// fall through to the inner provider
	default:
		if c.inner == nil {
			return "", eris.Wrapf(err, "token: cache read for user %d", userID)
		}
		zap.L().Warn("credential cache unavailable, delegating",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	if c.inner == nil {
		return "", eris.Wrapf(source.ErrAuthInvalid, "token: no cached credential for user %d", userID)
	}

	tok, err = c.inner.BearerToken(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, key, tok, c.ttl).Err(); err != nil {
		// The token is still usable; the next call just refreshes again.
		zap.L().Warn("credential cache write failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
	return tok, nil
}

// Store primes the cache with a token obtained out of band, e.g. by the seed
// command after a manual consent flow.
func (c *Cache) Store(ctx context.Context, userID int64, tok string) error {
	if err := c.client.Set(ctx, cacheKey(userID), tok, c.ttl).Err(); err != nil {
		return eris.Wrapf(err, "token: cache write for user %d", userID)
	}
	return nil
}

func cacheKey(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}
