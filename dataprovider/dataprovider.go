package dataprovider

import (
	"bytes"
	"context"
	"crypto/rand"
	"sync"
	"time"
)

const dataLength = 128

// Config holds configuration for Cache.
type Config struct {
	Longevity uint64 `yaml:"longevity"` // Data longevity in seconds.
}

type data struct {
	raw       []byte
	timestamp int64
}

// Cache is a simple in-memory cache for storing generated challenge data.
// Each address holds at most one challenge and a challenge can be consumed only once.
type Cache struct {
	data      map[string]data
	mux       sync.Mutex
	longevity time.Duration
}

// New creates new Cache and runs the cleaner.
func New(ctx context.Context, cfg Config) *Cache {
	if cfg.Longevity == 0 {
		cfg.Longevity = 60
	}
	return newCache(ctx, time.Duration(cfg.Longevity)*time.Second)
}

func newCache(ctx context.Context, longevity time.Duration) *Cache {
	c := &Cache{
		data:      make(map[string]data),
		longevity: longevity,
	}
	go func(ctx context.Context, t time.Duration, c *Cache) {
		ticker := time.NewTicker(t * 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.clean()
			}
		}
	}(ctx, longevity, c)

	return c
}

func (c *Cache) clean() {
	c.mux.Lock()
	defer c.mux.Unlock()
	now := time.Now().UnixNano()
	for k, v := range c.data {
		if v.timestamp < now {
			delete(c.data, k)
		}
	}
}

// ProvideData generates data and stores it referring to given address.
// Previously provided data for the address is replaced.
func (c *Cache) ProvideData(address string) []byte {
	buf := make([]byte, dataLength)
	rand.Read(buf)

	c.mux.Lock()
	defer c.mux.Unlock()
	c.data[address] = data{
		raw:       buf,
		timestamp: time.Now().Add(c.longevity).UnixNano(),
	}

	return append([]byte{}, buf...)
}

// ValidateData checks if data is stored for given address and is not expired.
// Data stays valid after the check.
func (c *Cache) ValidateData(address string, data []byte) bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.valid(address, data)
}

// ConsumeData validates data the same way ValidateData does and removes it on success,
// so the same data cannot authorize another request.
func (c *Cache) ConsumeData(address string, data []byte) bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	if !c.valid(address, data) {
		return false
	}
	delete(c.data, address)
	return true
}

func (c *Cache) valid(address string, data []byte) bool {
	d, ok := c.data[address]
	if !ok {
		return false
	}
	if d.timestamp < time.Now().UnixNano() {
		return false
	}
	return bytes.Equal(data, d.raw)
}
