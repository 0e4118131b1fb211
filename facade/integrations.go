package facade

import (
	"context"
	"time"

	"github.com/kwatlas/kwcache/cachekey"
	"github.com/kwatlas/kwcache/types"
)

const (
	metricsNamespace    = "kwmetrics"
	llmNamespace        = "llm"
	embeddingsNamespace = "emb"

	defaultMetricsTTL    = 24 * time.Hour
	defaultLLMTTL        = 7 * 24 * time.Hour
	defaultEmbeddingsTTL = 30 * 24 * time.Hour
)

// KeywordMetrics is the cached payload of one keyword-metrics provider
// lookup.
type KeywordMetrics struct {
	Keyword     string  `json:"keyword"`
	Volume      int64   `json:"volume"`
	CPC         float64 `json:"cpc"`
	Competition float64 `json:"competition"`
	Difficulty  int     `json:"difficulty"`
}

// MetricsCache fronts the keyword-metrics providers. Keys are scoped by
// provider, market, and language; entries are tagged by market so a whole
// market can be invalidated in bulk.
type MetricsCache struct {
	typed *Typed[KeywordMetrics]
	keys  *cachekey.Builder
}

func NewMetricsCache(store types.CacheStore, keys *cachekey.Builder) *MetricsCache {
	return &MetricsCache{
		typed: NewTyped[KeywordMetrics](store, defaultMetricsTTL),
		keys:  keys,
	}
}

func (c *MetricsCache) key(provider, market, language, keyword string) string {
	return c.keys.Build(metricsNamespace,
		cachekey.Context{Market: market, Language: language}, "", provider, keyword)
}

func (c *MetricsCache) Get(ctx context.Context, provider, market, language, keyword string) (KeywordMetrics, bool) {
	return c.typed.Get(ctx, c.key(provider, market, language, keyword))
}

func (c *MetricsCache) Set(ctx context.Context, provider, market, language string, m KeywordMetrics) error {
	return c.typed.Set(ctx, c.key(provider, market, language, m.Keyword), m,
		"market:"+market, "provider:"+provider)
}

// GetBatch looks up many keywords in one round trip and reports the ones
// that need a provider call.
func (c *MetricsCache) GetBatch(ctx context.Context, provider, market, language string, keywords []string) (map[string]KeywordMetrics, []string, error) {
	keys := make([]string, len(keywords))
	keyToKeyword := make(map[string]string, len(keywords))
	for i, kw := range keywords {
		keys[i] = c.key(provider, market, language, kw)
		keyToKeyword[keys[i]] = kw
	}

	byKey, missingKeys, err := c.typed.GetBatch(ctx, keys)
	if err != nil {
		return nil, nil, err
	}

	result := make(map[string]KeywordMetrics, len(byKey))
	for key, m := range byKey {
		result[keyToKeyword[key]] = m
	}
	missing := make([]string, len(missingKeys))
	for i, key := range missingKeys {
		missing[i] = keyToKeyword[key]
	}
	return result, missing, nil
}

func (c *MetricsCache) SetBatch(ctx context.Context, provider, market, language string, items []KeywordMetrics) {
	byKey := make(map[string]KeywordMetrics, len(items))
	for _, m := range items {
		byKey[c.key(provider, market, language, m.Keyword)] = m
	}
	c.typed.SetBatch(ctx, byKey, "market:"+market, "provider:"+provider)
}

func (c *MetricsCache) InvalidateMarket(ctx context.Context, market string) int {
	return c.typed.InvalidateByTags(ctx, "market:"+market)
}

func (c *MetricsCache) InvalidateProvider(ctx context.Context, provider string) int {
	return c.typed.InvalidateByTags(ctx, "provider:"+provider)
}

// LLMResponse is one cached completion.
type LLMResponse struct {
	Model            string `json:"model"`
	Content          string `json:"content"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	FinishReason     string `json:"finish_reason,omitempty"`
}

// LLMCache fronts LLM providers. Prompts are unbounded, so the key carries
// a digest of the prompt rather than the prompt itself.
type LLMCache struct {
	typed *Typed[LLMResponse]
	keys  *cachekey.Builder
}

func NewLLMCache(store types.CacheStore, keys *cachekey.Builder) *LLMCache {
	return &LLMCache{
		typed: NewTyped[LLMResponse](store, defaultLLMTTL),
		keys:  keys,
	}
}

func (c *LLMCache) key(model, prompt string) string {
	return c.keys.Build(llmNamespace, cachekey.Context{}, "", model, cachekey.HashText(prompt))
}

func (c *LLMCache) Get(ctx context.Context, model, prompt string) (LLMResponse, bool) {
	return c.typed.Get(ctx, c.key(model, prompt))
}

func (c *LLMCache) Set(ctx context.Context, model, prompt string, resp LLMResponse) error {
	return c.typed.Set(ctx, c.key(model, prompt), resp, "model:"+model)
}

// GetOrGenerate returns the cached completion or invokes generate, caching
// the result on success.
func (c *LLMCache) GetOrGenerate(ctx context.Context, model, prompt string, generate func(ctx context.Context) (LLMResponse, error)) (LLMResponse, error) {
	return c.typed.GetOrSet(ctx, c.key(model, prompt), generate, "model:"+model)
}

func (c *LLMCache) InvalidateModel(ctx context.Context, model string) int {
	return c.typed.InvalidateByTags(ctx, "model:"+model)
}

// EmbeddingsCache fronts embedding generation. Values are raw vectors;
// keys digest the input text.
type EmbeddingsCache struct {
	typed *Typed[[]float32]
	keys  *cachekey.Builder
}

func NewEmbeddingsCache(store types.CacheStore, keys *cachekey.Builder) *EmbeddingsCache {
	return &EmbeddingsCache{
		typed: NewTyped[[]float32](store, defaultEmbeddingsTTL),
		keys:  keys,
	}
}

func (c *EmbeddingsCache) key(model, text string) string {
	return c.keys.Build(embeddingsNamespace, cachekey.Context{}, "", model, cachekey.HashText(text))
}

func (c *EmbeddingsCache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	return c.typed.Get(ctx, c.key(model, text))
}

func (c *EmbeddingsCache) Set(ctx context.Context, model, text string, vector []float32) error {
	return c.typed.Set(ctx, c.key(model, text), vector, "model:"+model)
}

// GetBatch resolves many texts at once, returning vectors by text plus the
// texts still needing generation, in input order.
func (c *EmbeddingsCache) GetBatch(ctx context.Context, model string, texts []string) (map[string][]float32, []string, error) {
	keys := make([]string, len(texts))
	keyToText := make(map[string]string, len(texts))
	for i, text := range texts {
		keys[i] = c.key(model, text)
		keyToText[keys[i]] = text
	}

	byKey, missingKeys, err := c.typed.GetBatch(ctx, keys)
	if err != nil {
		return nil, nil, err
	}

	result := make(map[string][]float32, len(byKey))
	for key, vec := range byKey {
		result[keyToText[key]] = vec
	}
	missing := make([]string, len(missingKeys))
	for i, key := range missingKeys {
		missing[i] = keyToText[key]
	}
	return result, missing, nil
}

func (c *EmbeddingsCache) SetBatch(ctx context.Context, model string, vectors map[string][]float32) {
	byKey := make(map[string][]float32, len(vectors))
	for text, vec := range vectors {
		byKey[c.key(model, text)] = vec
	}
	c.typed.SetBatch(ctx, byKey, "model:"+model)
}
