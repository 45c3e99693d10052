package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/nci/gomemcache/memcache"

	"github.com/nci/odccov/logger"
)

// CachedIndex is a memcached read-through wrapper around another Index.
// Product metadata rarely changes, so even a short expiry removes most of
// the index round trips during descriptor construction.
type CachedIndex struct {
	index   Index
	mc      *memcache.Client
	expires int32
}

func NewCachedIndex(index Index, mcURI string, expirySeconds int32) *CachedIndex {
	return &CachedIndex{
		index:   index,
		mc:      memcache.New(mcURI),
		expires: expirySeconds,
	}
}

func cacheKey(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "odccov:" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedIndex) get(key string, out interface{}) bool {
	item, err := c.mc.Get(key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(item.Value, out); err != nil {
		logger.Log.Warnf("discarding undecodable cache entry %s: %v", key, err)
		return false
	}
	return true
}

func (c *CachedIndex) put(key string, val interface{}) {
	payload, err := json.Marshal(val)
	if err != nil {
		return
	}
	err = c.mc.Set(&memcache.Item{Key: key, Value: payload, Expiration: c.expires})
	if err != nil {
		logger.Log.Warnf("cache set for %s failed: %v", key, err)
	}
}

func (c *CachedIndex) Product(ctx context.Context, name string) (*Product, error) {
	key := cacheKey("product", name)

	var cached Product
	if c.get(key, &cached) {
		return &cached, nil
	}

	product, err := c.index.Product(ctx, name)
	if err != nil {
		return nil, err
	}
	c.put(key, product)
	return product, nil
}

func (c *CachedIndex) Datasets(ctx context.Context, product string) ([]*Dataset, error) {
	key := cacheKey("datasets", product)

	var cached []*Dataset
	if c.get(key, &cached) {
		return cached, nil
	}

	datasets, err := c.index.Datasets(ctx, product)
	if err != nil {
		return nil, err
	}
	c.put(key, datasets)
	return datasets, nil
}
