// Package cachekey builds deterministic, collision-resistant cache keys from
// semantic parameters. All functions are pure: identical inputs always yield
// byte-identical keys.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const (
	delimiter           = ":"
	DefaultMaxKeyLength = 250
)

// Context carries the optional semantic scope of a key.
type Context struct {
	Market   string
	Language string
	User     string
}

type Builder struct {
	prefix       string
	maxKeyLength int
}

func NewBuilder(prefix string, maxKeyLength int) *Builder {
	if maxKeyLength <= 0 {
		maxKeyLength = DefaultMaxKeyLength
	}
	return &Builder{
		prefix:       prefix,
		maxKeyLength: maxKeyLength,
	}
}

// Build assembles prefix:namespace:market:<m>:lang:<l>:user:<u>:v<version>:parts...
// Keys longer than the configured maximum collapse to prefix:hash:<digest> so
// the result stays bounded while remaining a pure function of the full key.
func (b *Builder) Build(namespace string, ctx Context, version string, parts ...string) string {
	segments := make([]string, 0, 8+len(parts))

	if b.prefix != "" {
		segments = append(segments, b.prefix)
	}
	segments = append(segments, namespace)

	if ctx.Market != "" {
		segments = append(segments, "market"+delimiter+ctx.Market)
	}
	if ctx.Language != "" {
		segments = append(segments, "lang"+delimiter+ctx.Language)
	}
	if ctx.User != "" {
		segments = append(segments, "user"+delimiter+ctx.User)
	}
	if version != "" {
		segments = append(segments, "v"+version)
	}

	segments = append(segments, parts...)

	key := strings.Join(segments, delimiter)
	if len(key) > b.maxKeyLength {
		return b.hashedKey(key)
	}
	return key
}

// BuildHashed is Build with the identifier parts first sorted and digested.
// Used for multi-value identifiers (keyword lists, prompts) where member
// ordering is not semantically meaningful and raw length is unbounded.
func (b *Builder) BuildHashed(namespace string, ctx Context, version string, parts ...string) string {
	return b.Build(namespace, ctx, version, HashParts(parts...))
}

// HashParts returns a fixed-length hex digest over the sorted parts.
// SHA-256 keeps the collision risk cryptographically negligible, which a
// plain checksum would not.
func HashParts(parts ...string) string {
	sorted := make([]string, len(parts))
	copy(sorted, parts)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:16])
}

// HashText digests a single unbounded identifier (prompt, document text)
// without reordering.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

func (b *Builder) hashedKey(fullKey string) string {
	sum := sha256.Sum256([]byte(fullKey))
	prefix := b.prefix
	if prefix == "" {
		prefix = "key"
	}
	return prefix + delimiter + "hash" + delimiter + hex.EncodeToString(sum[:16])
}

// MaxKeyLength reports the configured bound; hashed keys always fit in it.
func (b *Builder) MaxKeyLength() int {
	return b.maxKeyLength
}
