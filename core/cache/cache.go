// Package cache is a namespaced, time-expiring cache on top of a persistent key/value Store.
//
// When the Store runs out of room, the oldest entries (by write time) of the namespace are evicted
// in batches and the write is retried once. Eviction is not LRU: reads do not refresh entries.
// Expired entries stay in the Store until overwritten or evicted so that GetStale can fall back on them.
package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core"
)

type Options struct {
	Prefix             string
	TTL                time.Duration
	SoftLimit          int // namespaced entries above which a failed write triggers eviction
	EvictBatch         int
	ForceRefreshWindow time.Duration
}

var DefaultOptions = Options{
	Prefix:             "tathmini_",
	TTL:                5 * time.Minute,
	SoftLimit:          50,
	EvictBatch:         10,
	ForceRefreshWindow: time.Second,
}

// OptionsFromConfig fills the zero values of conf with DefaultOptions.
func OptionsFromConfig(conf core.CacheConfig) Options {
	opts := DefaultOptions
	if conf.Prefix != "" {
		opts.Prefix = conf.Prefix
	}
	if conf.TTL > 0 {
		opts.TTL = conf.TTL
	}
	if conf.SoftLimit > 0 {
		opts.SoftLimit = conf.SoftLimit
	}
	if conf.EvictBatch > 0 {
		opts.EvictBatch = conf.EvictBatch
	}
	if conf.ForceRefreshWindow > 0 {
		opts.ForceRefreshWindow = conf.ForceRefreshWindow
	}
	return opts
}

type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix ms
	Expires   int64           `json:"expires"`   // unix ms
}

type Stats struct {
	Hits          int `json:"hits"`
	Misses        int `json:"misses"`
	StaleHits     int `json:"staleHits"`
	Evictions     int `json:"evictions"`
	WriteFailures int `json:"writeFailures"`
	Healed        int `json:"healed"`
}

type Cache struct {
	store Store
	clock clockwork.Clock
	log   core.Logger
	opts  Options

	mu           sync.Mutex
	forceRefresh bool
	resetTimer   clockwork.Timer
	stats        Stats
}

func New(store Store, clock clockwork.Clock, logger core.Logger, opts Options) *Cache {
	return &Cache{
		store: store,
		clock: clock,
		log:   logger,
		opts:  opts,
	}
}

func (c *Cache) key(k string) string { return c.opts.Prefix + k }

// Now returns the time on the cache clock.
func (c *Cache) Now() time.Time { return c.clock.Now() }

// TTL returns the default time to live of the entries.
func (c *Cache) TTL() time.Duration { return c.opts.TTL }

// Set stores data (JSON encoded) under key for the given ttl (default TTL).
// The returned error is informational: callers may carry on as if nothing was cached.
func (c *Cache) Set(key string, data interface{}, ttl ...time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "encoding %q", key)
	}

	expiry := c.opts.TTL
	if len(ttl) > 0 {
		expiry = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	value, err := json.Marshal(entry{
		Data:      raw,
		Timestamp: now.UnixMilli(),
		Expires:   now.Add(expiry).UnixMilli(),
	})
	if err != nil {
		return errors.Wrapf(err, "encoding %q", key)
	}

	err = c.store.Set(c.key(key), value)
	if errors.Cause(err) == ErrQuotaExceeded {
		if evictErr := c.evictOldest(); evictErr != nil {
			c.log.Warn(fmt.Sprintf("cache: evicting old entries: %v", evictErr), evictErr)
		}
		err = c.store.Set(c.key(key), value)
	}
	if err != nil {
		c.stats.WriteFailures++
		c.log.Warn(fmt.Sprintf("cache: could not write %q: %v", key, err), err)
		return errors.Wrapf(err, "writing %q", key)
	}
	return nil
}

// evictOldest removes the EvictBatch oldest entries of the namespace, when it holds more than SoftLimit entries.
// Unreadable entries count as the oldest.
func (c *Cache) evictOldest() error {
	keys, err := c.store.Keys(c.opts.Prefix)
	if err != nil {
		return errors.Wrap(err, "listing keys")
	}
	if len(keys) <= c.opts.SoftLimit {
		return nil
	}

	type aged struct {
		key       string
		timestamp int64
	}
	entries := make([]aged, 0, len(keys))
	for _, k := range keys {
		ts := int64(math.MinInt64)
		if raw, ok, err := c.store.Get(k); err == nil && ok {
			var e entry
			if json.Unmarshal(raw, &e) == nil {
				ts = e.Timestamp
			}
		}
		entries = append(entries, aged{key: k, timestamp: ts})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].timestamp != entries[j].timestamp {
			return entries[i].timestamp < entries[j].timestamp
		}
		return entries[i].key < entries[j].key
	})

	n := c.opts.EvictBatch
	if n > len(entries) {
		n = len(entries)
	}
	for _, e := range entries[:n] {
		if err := c.store.Remove(e.key); err != nil {
			return errors.Wrapf(err, "removing %q", e.key)
		}
		c.stats.Evictions++
	}
	return nil
}

// read loads and decodes the entry under key into dst. Corrupt entries are removed.
func (c *Cache) read(key string, dst interface{}, checkExpiry bool) bool {
	raw, ok, err := c.store.Get(c.key(key))
	if err != nil {
		c.log.Warn(fmt.Sprintf("cache: could not read %q: %v", key, err), err)
		return false
	}
	if !ok {
		return false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err == nil && len(e.Data) > 0 {
		if checkExpiry && c.clock.Now().UnixMilli() > e.Expires {
			return false
		}
		if err = json.Unmarshal(e.Data, dst); err == nil {
			return true
		}
	}

	if err := c.store.Remove(c.key(key)); err != nil {
		c.log.Warn(fmt.Sprintf("cache: could not remove corrupt %q: %v", key, err), err)
	}
	c.stats.Healed++
	return false
}

// Get decodes the unexpired entry under key into dst.
// It always misses while force refresh is on.
func (c *Cache) Get(key string, dst interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.forceRefresh && c.read(key, dst, true) {
		c.stats.Hits++
		return true
	}
	c.stats.Misses++
	return false
}

// GetStale decodes the entry under key into dst, expired or not.
func (c *Cache) GetStale(key string, dst interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.read(key, dst, false) {
		c.stats.StaleHits++
		return true
	}
	return false
}

func (c *Cache) Clear(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Wrapf(c.store.Remove(c.key(key)), "clearing %q", key)
}

// ClearAll removes every entry of the namespace.
func (c *Cache) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.store.Keys(c.opts.Prefix)
	if err != nil {
		return errors.Wrap(err, "listing keys")
	}
	for _, k := range keys {
		if err := c.store.Remove(k); err != nil {
			return errors.Wrapf(err, "removing %q", k)
		}
	}
	return nil
}

// SetForceRefresh makes Get miss until it is turned off, or until ForceRefreshWindow elapses.
func (c *Cache) SetForceRefresh(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
	c.forceRefresh = on
	if on && c.opts.ForceRefreshWindow > 0 {
		var timer clockwork.Timer
		timer = c.clock.AfterFunc(c.opts.ForceRefreshWindow, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.resetTimer == timer {
				c.forceRefresh = false
				c.resetTimer = nil
			}
		})
		c.resetTimer = timer
	}
}

func (c *Cache) ForceRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forceRefresh
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
