package cache

import (
	"path"
	"sync"
	"time"
)

// fallbackMap is the in-process store used while the remote store is
// unreachable. It holds encoded envelopes keyed by full key and is shared
// by all concurrent callers plus the janitor, hence the mutex.
type fallbackMap struct {
	mu         sync.RWMutex
	entries    map[string]fallbackEntry
	defaultTTL time.Duration
}

type fallbackEntry struct {
	data      []byte
	expiresAt time.Time
}

func newFallbackMap(defaultTTL time.Duration) *fallbackMap {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &fallbackMap{
		entries:    make(map[string]fallbackEntry),
		defaultTTL: defaultTTL,
	}
}

func (f *fallbackMap) get(key string) ([]byte, bool) {
	f.mu.RLock()
	entry, ok := f.entries[key]
	f.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		f.mu.Lock()
		delete(f.entries, key)
		f.mu.Unlock()
		return nil, false
	}
	return entry.data, true
}

// set caps the entry lifetime at the fallback TTL: the fallback map is a
// degradation shim, not a second durable cache.
func (f *fallbackMap) set(key string, data []byte, ttl time.Duration) {
	if ttl <= 0 || ttl > f.defaultTTL {
		ttl = f.defaultTTL
	}

	f.mu.Lock()
	f.entries[key] = fallbackEntry{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	}
	f.mu.Unlock()
}

func (f *fallbackMap) delete(key string) {
	f.mu.Lock()
	delete(f.entries, key)
	f.mu.Unlock()
}

func (f *fallbackMap) deleteAll(keys []string) {
	f.mu.Lock()
	for _, key := range keys {
		delete(f.entries, key)
	}
	f.mu.Unlock()
}

func (f *fallbackMap) len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// clear removes entries matching the glob pattern, or everything when the
// pattern is empty. Returns the number of removed entries.
func (f *fallbackMap) clear(pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pattern == "" {
		removed := len(f.entries)
		f.entries = make(map[string]fallbackEntry)
		return removed
	}

	removed := 0
	for key := range f.entries {
		if globMatch(pattern, key) {
			delete(f.entries, key)
			removed++
		}
	}
	return removed
}

func (f *fallbackMap) purgeExpired() int {
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for key, entry := range f.entries {
		if now.After(entry.expiresAt) {
			delete(f.entries, key)
			removed++
		}
	}
	return removed
}

// globMatch covers the redis-style patterns used for invalidation
// (prefix:*, *:suffix, literal keys). Cache keys are ':'-delimited and never
// contain '/', so path.Match semantics line up.
func globMatch(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
