package infocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowtube/flowtube/internal/models"
	"github.com/flowtube/flowtube/internal/utils"
)

const redisKeyPrefix = "flowtube:info"

// TieredCache layers a shared Redis tier under the in-process LRU. Writes go
// to both tiers; reads fall back to Redis on a memory miss. Redis failures
// degrade the cache to memory-only behaviour.
type TieredCache struct {
	mem       *MemoryCache
	client    *redis.Client
	opTimeout time.Duration
}

// NewTieredCache wires a Redis client under a memory cache. The connection
// is pinged once so a dead Redis is reported at startup.
func NewTieredCache(mem *MemoryCache, client *redis.Client) (*TieredCache, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &TieredCache{
		mem:       mem,
		client:    client,
		opTimeout: 2 * time.Second,
	}, nil
}

// urlDigest hashes the URL segment so keys stay glob-safe. A raw URL can
// contain colons and would let a wildcard pattern over-match entries of
// other services or content types.
func urlDigest(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *TieredCache) redisKey(key Key) string {
	restricted := 0
	if key.ContentType.RestrictionSensitive() && c.mem.RestrictedMode(key.ServiceID) {
		restricted = 1
	}
	return fmt.Sprintf("%s:%s:%s:%d:%s", redisKeyPrefix, key.ServiceID, key.ContentType, restricted, urlDigest(key.URL))
}

func (c *TieredCache) Get(key Key) (*models.StreamInfo, bool) {
	if info, found := c.mem.Get(key); found {
		return info, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()

	rkey := c.redisKey(key)
	data, err := c.client.Get(ctx, rkey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		utils.LogWarn(ctx, "Redis cache get failed", utils.Fields{"key": rkey, "error": err.Error()})
		return nil, false
	}

	var info models.StreamInfo
	if err := json.Unmarshal(data, &info); err != nil {
		utils.LogWarn(ctx, "Redis cache entry corrupt, dropping", utils.Fields{"key": rkey})
		c.client.Del(ctx, rkey)
		return nil, false
	}

	// Promote back into the memory tier with the TTL Redis still holds.
	if ttl, err := c.client.PTTL(ctx, rkey).Result(); err == nil && ttl > 0 {
		c.mem.Set(key, &info, ttl)
	}

	return &info, true
}

func (c *TieredCache) Set(key Key, info *models.StreamInfo, ttl time.Duration) {
	c.mem.Set(key, info, ttl)

	if info == nil || ttl <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()

	data, err := json.Marshal(info)
	if err != nil {
		utils.LogWarn(ctx, "Failed to encode cache entry for Redis", utils.Fields{"error": err.Error()})
		return
	}

	rkey := c.redisKey(key)
	if err := c.client.Set(ctx, rkey, data, ttl).Err(); err != nil {
		utils.LogWarn(ctx, "Redis cache set failed", utils.Fields{"key": rkey, "error": err.Error()})
	}
}

func (c *TieredCache) Delete(key Key) {
	c.mem.Delete(key)

	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()

	for _, restricted := range []int{0, 1} {
		rkey := fmt.Sprintf("%s:%s:%s:%d:%s", redisKeyPrefix, key.ServiceID, key.ContentType, restricted, urlDigest(key.URL))
		if err := c.client.Del(ctx, rkey).Err(); err != nil {
			utils.LogWarn(ctx, "Redis cache delete failed", utils.Fields{"key": rkey, "error": err.Error()})
		}
	}
}

func (c *TieredCache) Invalidate(serviceID string, contentType models.ContentType) int {
	removed := c.mem.Invalidate(serviceID, contentType)

	service := serviceID
	if service == "" {
		service = "*"
	}
	ctype := string(contentType)
	if ctype == "" {
		ctype = "*"
	}
	c.deleteByPattern(fmt.Sprintf("%s:%s:%s:*", redisKeyPrefix, service, ctype))

	return removed
}

func (c *TieredCache) SetRestrictedMode(serviceID string, restricted bool) int {
	before := c.mem.RestrictedMode(serviceID)
	removed := c.mem.SetRestrictedMode(serviceID, restricted)
	if before == restricted {
		return removed
	}

	// Only restriction-sensitive types are flushed from the shared tier.
	for _, contentType := range []models.ContentType{models.ContentTypeStream, models.ContentTypeComments} {
		c.deleteByPattern(fmt.Sprintf("%s:%s:%s:*", redisKeyPrefix, serviceID, contentType))
	}

	return removed
}

func (c *TieredCache) RestrictedMode(serviceID string) bool {
	return c.mem.RestrictedMode(serviceID)
}

func (c *TieredCache) Stats() Stats {
	return c.mem.Stats()
}

func (c *TieredCache) Clear() {
	c.mem.Clear()
	c.deleteByPattern(redisKeyPrefix + ":*")
}

// deleteByPattern scans and deletes matching keys. Errors only degrade the
// shared tier, they never fail the caller.
func (c *TieredCache) deleteByPattern(pattern string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			utils.LogWarn(ctx, "Redis cache delete failed", utils.Fields{"key": iter.Val(), "error": err.Error()})
		}
	}
	if err := iter.Err(); err != nil {
		utils.LogWarn(ctx, "Redis cache scan failed", utils.Fields{"pattern": pattern, "error": err.Error()})
	}
}
