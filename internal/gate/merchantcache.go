package gate

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// MerchantConfig is fetched from the verify service and describes where
// payments for this merchant should land.
type MerchantConfig struct {
	WalletAddress string
	Network       string // "devnet" or "mainnet-beta"
}

// merchantConfigCache caches a MerchantConfig per API key for the lifetime
// of the process. A cold read blocks on the fetch; concurrent readers of a
// cold key share a single in-flight fetch via singleflight, matching the
// "blocks on first call, concurrent callers share the fetch" contract.
type merchantConfigCache struct {
	mu    sync.RWMutex
	warm  map[string]MerchantConfig
	group singleflight.Group
}

func newMerchantConfigCache() *merchantConfigCache {
	return &merchantConfigCache{warm: make(map[string]MerchantConfig)}
}

// get returns the cached MerchantConfig for apiKey, calling fetch at most
// once per cold key even under concurrent callers.
func (c *merchantConfigCache) get(apiKey string, fetch func() (MerchantConfig, error)) (MerchantConfig, error) {
	c.mu.RLock()
	cfg, ok := c.warm[apiKey]
	c.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	v, err, _ := c.group.Do(apiKey, func() (interface{}, error) {
		cfg, err := fetch()
		if err != nil {
			return MerchantConfig{}, err
		}
		c.mu.Lock()
		c.warm[apiKey] = cfg
		c.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return MerchantConfig{}, err
	}
	return v.(MerchantConfig), nil
}
