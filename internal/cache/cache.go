package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/intentest/intentest/internal/model"
)

var quoteStripper = strings.NewReplacer(`"`, "", "'", "", "“", "", "”", "")

// Normalize canonicalizes a descriptor for cache keying: quotes and
// leading articles stripped, trailing element-kind suffixes removed,
// lowercased, whitespace folded. `the "Email" field` and `email` share
// one cache slot.
func Normalize(descriptor string) string {
	d := strings.ToLower(quoteStripper.Replace(descriptor))
	d = strings.TrimSpace(d)
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(d, article) {
			d = d[len(article):]
			break
		}
	}
	for _, suffix := range []string{" field", " button", " input", " textbox", " box", " link", " dropdown", " checkbox", " element", " icon", " tab"} {
		d = strings.TrimSuffix(d, suffix)
	}
	return strings.Join(strings.Fields(d), " ")
}

type entry struct {
	locator   model.ElementLocator
	expiresAt time.Time
}

// LocatorCache maps (page fingerprint, normalized descriptor) pairs to
// resolved locators. It is shared read-mostly across workers: the
// fingerprint component of the key already scopes out cross-worker
// interference, so writes need nothing beyond the map lock and stale
// concurrent writes for the same key are safely overwritten.
type LocatorCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	store   *Store
	now     func() time.Time
}

// Option customizes cache construction.
type Option func(*LocatorCache)

// WithStore attaches a persistence store. Surviving entries are loaded
// at construction and every mutation is mirrored best-effort.
func WithStore(store *Store) Option {
	return func(c *LocatorCache) { c.store = store }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(c *LocatorCache) { c.now = now }
}

// New creates a cache whose entries live for ttl.
func New(ttl time.Duration, opts ...Option) *LocatorCache {
	c := &LocatorCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store != nil {
		persisted, err := c.store.Load()
		if err == nil {
			for _, p := range persisted {
				if p.ExpiresAt.After(c.now()) {
					c.entries[p.Key] = entry{locator: p.Locator, expiresAt: p.ExpiresAt}
				}
			}
		}
	}
	return c
}

func key(fp model.PageFingerprint, descriptor string) string {
	return fp.Key() + "\x00" + Normalize(descriptor)
}

// Get returns the cached locator for the descriptor on the given page
// state. Expired entries are evicted on lookup and reported as misses.
func (c *LocatorCache) Get(fp model.PageFingerprint, descriptor string) (model.ElementLocator, bool) {
	k := key(fp, descriptor)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if !ok {
		return model.ElementLocator{}, false
	}
	if !e.expiresAt.After(c.now()) {
		c.evictKey(k)
		return model.ElementLocator{}, false
	}
	return e.locator, true
}

// Put stores a locator for the descriptor, replacing any previous entry
// (last writer wins).
func (c *LocatorCache) Put(fp model.PageFingerprint, descriptor string, locator model.ElementLocator) {
	k := key(fp, descriptor)
	expires := c.now().Add(c.ttl)

	c.mu.Lock()
	c.entries[k] = entry{locator: locator, expiresAt: expires}
	c.mu.Unlock()

	if c.store != nil {
		_ = c.store.Upsert(k, locator, expires)
	}
}

// Evict removes the entry for the descriptor on the given page state.
func (c *LocatorCache) Evict(fp model.PageFingerprint, descriptor string) {
	c.evictKey(key(fp, descriptor))
}

func (c *LocatorCache) evictKey(k string) {
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()

	if c.store != nil {
		_ = c.store.Delete(k)
	}
}

// Clear drops every entry.
func (c *LocatorCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	if c.store != nil {
		_ = c.store.Clear()
	}
}

// Len reports the number of live entries, counting expired ones still
// awaiting lookup-time eviction.
func (c *LocatorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
