// Package cache memoizes answers per query within one process.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Policy selects how entries are evicted.
type Policy string

const (
	// PolicyNone keeps every entry until Reset.
	PolicyNone Policy = "none"
	// PolicySize evicts the least recently used entry beyond MaxEntries.
	PolicySize Policy = "size"
	// PolicyTTL expires entries TTL after they were stored. MaxEntries,
	// when set, also bounds the cache.
	PolicyTTL Policy = "ttl"
)

// Options configures a QueryCache.
type Options struct {
	Policy     Policy
	MaxEntries int
	TTL        time.Duration
}

type entry struct {
	key      string
	value    string
	storedAt time.Time
}

// QueryCache maps query keys to answers. It is safe for concurrent use.
type QueryCache struct {
	mu      sync.Mutex
	opts    Options
	ll      *list.List
	entries map[string]*list.Element
	now     func() time.Time
}

func New(opts Options) (*QueryCache, error) {
	switch opts.Policy {
	case "", PolicyNone:
		opts.Policy = PolicyNone
	case PolicySize:
		if opts.MaxEntries <= 0 {
			return nil, fmt.Errorf("size policy requires max entries > 0")
		}
	case PolicyTTL:
		if opts.TTL <= 0 {
			return nil, fmt.Errorf("ttl policy requires ttl > 0")
		}
	default:
		return nil, fmt.Errorf("unknown cache policy %q", opts.Policy)
	}
	return &QueryCache{
		opts:    opts,
		ll:      list.New(),
		entries: make(map[string]*list.Element),
		now:     time.Now,
	}, nil
}

// Key derives the cache key from a query. Surrounding whitespace is
// ignored; case is not.
func Key(query string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(query)))
	return hex.EncodeToString(sum[:])
}

func (c *QueryCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return "", false
	}
	e := el.Value.(*entry)
	if c.expired(e) {
		c.remove(el)
		return "", false
	}
	c.ll.MoveToFront(el)
	return e.value, true
}

func (c *QueryCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.storedAt = c.now()
		c.ll.MoveToFront(el)
		return
	}
	c.entries[key] = c.ll.PushFront(&entry{key: key, value: value, storedAt: c.now()})
	c.evict()
}

// Reset drops every entry.
func (c *QueryCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.entries = make(map[string]*list.Element)
}

// Len returns the number of live entries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpired()
	return c.ll.Len()
}

func (c *QueryCache) expired(e *entry) bool {
	return c.opts.Policy == PolicyTTL && c.now().Sub(e.storedAt) >= c.opts.TTL
}

func (c *QueryCache) evict() {
	c.purgeExpired()
	if c.opts.Policy == PolicyNone || c.opts.MaxEntries <= 0 {
		return
	}
	for c.ll.Len() > c.opts.MaxEntries {
		c.remove(c.ll.Back())
	}
}

func (c *QueryCache) purgeExpired() {
	if c.opts.Policy != PolicyTTL {
		return
	}
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*entry)) {
			c.remove(el)
		}
		el = prev
	}
}

func (c *QueryCache) remove(el *list.Element) {
	c.ll.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
}
