package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFallbackSetGet(t *testing.T) {
	f := newFallbackMap(time.Minute)

	f.set("a", []byte("1"), time.Minute)

	data, ok := f.get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), data)

	_, ok = f.get("b")
	assert.False(t, ok)
}

func TestFallbackTTLCapped(t *testing.T) {
	f := newFallbackMap(50 * time.Millisecond)

	// an hour-long entry TTL is capped at the fallback TTL
	f.set("a", []byte("1"), time.Hour)
	time.Sleep(80 * time.Millisecond)

	_, ok := f.get("a")
	assert.False(t, ok)
}

func TestFallbackPurgeExpired(t *testing.T) {
	f := newFallbackMap(time.Minute)

	f.set("dead", []byte("1"), time.Nanosecond)
	f.set("live", []byte("2"), time.Minute)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, f.purgeExpired())
	assert.Equal(t, 1, f.len())
}

func TestFallbackClearPattern(t *testing.T) {
	f := newFallbackMap(time.Minute)

	f.set("test:kw:a", []byte("1"), time.Minute)
	f.set("test:kw:b", []byte("2"), time.Minute)
	f.set("test:llm:c", []byte("3"), time.Minute)

	assert.Equal(t, 2, f.clear("test:kw:*"))
	assert.Equal(t, 1, f.len())

	assert.Equal(t, 1, f.clear(""))
	assert.Equal(t, 0, f.len())
}

func TestFallbackDeleteAll(t *testing.T) {
	f := newFallbackMap(time.Minute)

	f.set("a", []byte("1"), time.Minute)
	f.set("b", []byte("2"), time.Minute)
	f.deleteAll([]string{"a", "b", "missing"})

	assert.Equal(t, 0, f.len())
}
