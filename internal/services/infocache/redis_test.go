package infocache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/flowtube/flowtube/internal/models"
)

// setupTieredCache starts a miniredis server and layers a tiered cache on it.
func setupTieredCache(t *testing.T) (*miniredis.Miniredis, *TieredCache) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	cache, err := NewTieredCache(NewMemoryCache(10), client)
	if err != nil {
		t.Fatalf("failed to create tiered cache: %v", err)
	}
	return mr, cache
}

func TestTieredCacheSetGet(t *testing.T) {
	_, cache := setupTieredCache(t)
	key := streamKey("https://www.youtube.com/watch?v=abc12345678")

	cache.Set(key, testInfo("abc12345678"), time.Minute)

	info, found := cache.Get(key)
	if !found {
		t.Fatal("Expected hit after Set")
	}
	if info.VideoID != "abc12345678" {
		t.Errorf("Expected video ID abc12345678, got %s", info.VideoID)
	}
}

func TestTieredCacheRedisFallback(t *testing.T) {
	_, cache := setupTieredCache(t)
	key := streamKey("https://www.youtube.com/watch?v=abc12345678")

	cache.Set(key, testInfo("abc12345678"), time.Minute)

	// Drop the memory tier; the shared tier must still answer.
	cache.mem.Clear()

	info, found := cache.Get(key)
	if !found {
		t.Fatal("Expected Redis tier to serve after a memory flush")
	}
	if info.VideoID != "abc12345678" {
		t.Errorf("Expected video ID abc12345678, got %s", info.VideoID)
	}

	// The hit promoted the entry back into memory.
	if _, found := cache.mem.Get(key); !found {
		t.Error("Expected Redis hit to be promoted into the memory tier")
	}
}

func TestTieredCacheMiss(t *testing.T) {
	_, cache := setupTieredCache(t)

	if _, found := cache.Get(streamKey("nope")); found {
		t.Error("Expected miss for unknown key")
	}
}

func TestTieredCacheDelete(t *testing.T) {
	_, cache := setupTieredCache(t)
	key := streamKey("u1")

	cache.Set(key, testInfo("v1"), time.Minute)
	cache.Delete(key)

	if _, found := cache.Get(key); found {
		t.Error("Expected entry to be gone from both tiers after Delete")
	}
}

func TestTieredCacheCorruptEntry(t *testing.T) {
	mr, cache := setupTieredCache(t)
	key := streamKey("u1")

	mr.Set(cache.redisKey(key), "not json")

	if _, found := cache.Get(key); found {
		t.Error("Expected corrupt Redis entry to count as a miss")
	}
	if mr.Exists(cache.redisKey(key)) {
		t.Error("Expected corrupt Redis entry to be dropped")
	}
}

func TestTieredCacheSetRestrictedModeFlushesRedis(t *testing.T) {
	mr, cache := setupTieredCache(t)
	key := streamKey("u1")

	cache.Set(key, testInfo("v1"), time.Minute)
	unrestricted := cache.redisKey(key)

	removed := cache.SetRestrictedMode("youtube", true)
	if removed != 1 {
		t.Errorf("Expected 1 memory entry dropped, got %d", removed)
	}
	if mr.Exists(unrestricted) {
		t.Error("Expected restriction flip to flush the Redis entry")
	}

	// Entries written under the new mode live under a different key.
	cache.Set(key, testInfo("v2"), time.Minute)
	if cache.redisKey(key) == unrestricted {
		t.Error("Expected restricted mode to change the Redis key")
	}
}

func TestTieredCacheInvalidate(t *testing.T) {
	mr, cache := setupTieredCache(t)

	cache.Set(streamKey("u1"), testInfo("v1"), time.Minute)
	cache.Set(streamKey("u2"), testInfo("v2"), time.Minute)

	cache.Invalidate("youtube", "")

	if len(mr.Keys()) != 0 {
		t.Errorf("Expected Redis tier flushed, keys left: %v", mr.Keys())
	}
}

func TestTieredCacheInvalidateScopedWithColonURLs(t *testing.T) {
	mr, cache := setupTieredCache(t)

	// URLs carry colons, so an unhashed key tail could satisfy a wildcard
	// pattern aimed at another content type.
	streamURL := "https://www.youtube.com/watch?v=abc12345678&t=1:23:45&note=channel:stream"
	cache.Set(streamKey(streamURL), testInfo("abc12345678"), time.Minute)
	cache.Set(Key{ServiceID: "youtube", URL: "https://www.youtube.com/channel/UC123:extra", ContentType: models.ContentTypeChannel}, testInfo("chan1234567"), time.Minute)

	cache.Invalidate("", models.ContentTypeChannel)

	if _, found := cache.Get(streamKey(streamURL)); !found {
		t.Fatal("Expected the stream entry to survive a channel invalidation")
	}
	cache.mem.Clear()
	if _, found := cache.Get(streamKey(streamURL)); !found {
		t.Fatal("Expected the stream entry to survive in the Redis tier as well")
	}

	remaining := mr.Keys()
	if len(remaining) != 1 {
		t.Errorf("Expected exactly the stream key left in Redis, got %v", remaining)
	}
}

func TestTieredCacheDegradesWhenRedisDies(t *testing.T) {
	mr, cache := setupTieredCache(t)
	key := streamKey("u1")

	mr.Close()

	// Writes and reads still work through the memory tier.
	cache.Set(key, testInfo("v1"), time.Minute)

	info, found := cache.Get(key)
	if !found {
		t.Fatal("Expected memory tier to serve with Redis down")
	}
	if info.VideoID != "v1" {
		t.Errorf("Expected video ID v1, got %s", info.VideoID)
	}
}
