package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yashrajoria/catalog-import/services/product-service/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ProductCachePrefix = "products:v:"
	CacheVersionKey    = "products:version"
	DefaultCacheTTL    = 10 * time.Minute
)

// cacheStore is the subset of *redis.Client the cache uses.
type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// CacheManager caches product reads under a version number. Bumping the
// version orphans every cached entry at once; orphans expire by TTL. A nil
// *CacheManager is a cache that always misses.
type CacheManager struct {
	store  cacheStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewCacheManager(store cacheStore, logger *zap.Logger) *CacheManager {
	return &CacheManager{store: store, ttl: DefaultCacheTTL, logger: logger}
}

// CacheSlot is the versioned key a lookup used. Storing through the slot of
// the lookup that missed keeps a value read before an invalidation under the
// old version, where nothing reads it again. The zero CacheSlot stores
// nothing.
type CacheSlot struct {
	key string
}

func (cm *CacheManager) GetProductList(ctx context.Context) ([]models.ProductWithStock, CacheSlot, bool) {
	var list []models.ProductWithStock
	slot, ok := cm.get(ctx, "list", &list)
	return list, slot, ok
}

func (cm *CacheManager) SetProductList(ctx context.Context, slot CacheSlot, list []models.ProductWithStock) {
	cm.set(ctx, slot, list)
}

func (cm *CacheManager) GetProduct(ctx context.Context, id string) (*models.ProductWithStock, CacheSlot, bool) {
	var p models.ProductWithStock
	slot, ok := cm.get(ctx, "id:"+id, &p)
	if !ok {
		return nil, slot, false
	}
	return &p, slot, true
}

func (cm *CacheManager) SetProduct(ctx context.Context, slot CacheSlot, p *models.ProductWithStock) {
	cm.set(ctx, slot, p)
}

// InvalidateProducts bumps the cache version.
func (cm *CacheManager) InvalidateProducts(ctx context.Context) error {
	if cm == nil {
		return nil
	}
	v, err := cm.store.Incr(ctx, CacheVersionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	cm.logger.Debug("Cache invalidated", zap.Int64("new_version", v))
	return nil
}

func (cm *CacheManager) get(ctx context.Context, suffix string, dst interface{}) (CacheSlot, bool) {
	if cm == nil {
		return CacheSlot{}, false
	}
	key, ok := cm.key(ctx, suffix)
	if !ok {
		return CacheSlot{}, false
	}
	slot := CacheSlot{key: key}
	data, err := cm.store.Get(ctx, key).Bytes()
	if err != nil {
		return slot, false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		cm.logger.Warn("Failed to unmarshal cached value", zap.String("key", key), zap.Error(err))
		return slot, false
	}
	return slot, true
}

func (cm *CacheManager) set(ctx context.Context, slot CacheSlot, v interface{}) {
	if cm == nil || slot.key == "" {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		cm.logger.Warn("Failed to marshal value for cache", zap.String("key", slot.key), zap.Error(err))
		return
	}
	if err := cm.store.Set(ctx, slot.key, data, cm.ttl).Err(); err != nil {
		cm.logger.Warn("Failed to cache value", zap.String("key", slot.key), zap.Error(err))
	}
}

// key prefixes suffix with the current version. A version that was never
// bumped reads as 0.
func (cm *CacheManager) key(ctx context.Context, suffix string) (string, bool) {
	v, err := cm.store.Get(ctx, CacheVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false
	}
	return fmt.Sprintf("%s%d:%s", ProductCachePrefix, v, suffix), true
}
