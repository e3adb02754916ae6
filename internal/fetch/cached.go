package fetch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PageCache holds extracted page text keyed by the exact URL string it was requested with.
// Entries never expire.
type PageCache struct {
	mu    sync.RWMutex
	pages map[string]string
}

// NewPageCache creates an empty page cache.
func NewPageCache() *PageCache {
	return &PageCache{pages: make(map[string]string)}
}

// Get returns the cached text for url.
func (c *PageCache) Get(url string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.pages[url]
	return text, ok
}

// Put stores text for url, replacing any previous entry.
func (c *PageCache) Put(url, text string) {
	c.mu.Lock()
	c.pages[url] = text
	c.mu.Unlock()
}

// Len returns the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// RenderFunc returns the HTML of a page after JavaScript has run.
type RenderFunc func(ctx context.Context, url string) (string, error)

// CachedFetcher wraps URL fetching and text extraction with an in-memory cache.
type CachedFetcher struct {
	cache      *PageCache
	options    *Options
	tags       []string
	useBrowser bool
	render     RenderFunc
	logger     *zap.Logger
	group      singleflight.Group
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	Options *Options
	// Tags are the element types text is extracted from. Defaults to DefaultTextTags.
	Tags []string
	// UseBrowser re-renders pages whose extracted text is too short in headless Chrome.
	UseBrowser bool
	// Render overrides the headless browser renderer.
	Render RenderFunc
	Logger *zap.Logger
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		Options: DefaultOptions(),
		Tags:    DefaultTextTags(),
	}
}

// NewCachedFetcher creates a new cached fetcher. A nil cache gets a fresh PageCache.
func NewCachedFetcher(cache *PageCache, config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	if cache == nil {
		cache = NewPageCache()
	}
	f := &CachedFetcher{
		cache:      cache,
		options:    config.Options,
		tags:       config.Tags,
		useBrowser: config.UseBrowser,
		render:     config.Render,
		logger:     config.Logger,
	}
	if f.options == nil {
		f.options = DefaultOptions()
	}
	if len(f.tags) == 0 {
		f.tags = DefaultTextTags()
	}
	if f.render == nil {
		f.render = BrowserSimple
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// CachedResult is extracted page text with cache metadata.
type CachedResult struct {
	URL       string
	Text      string
	FromCache bool
}

// Fetch returns the text for urlStr, scraping it on the first request only.
// Concurrent requests for the same uncached URL share a single scrape.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	if text, ok := f.cache.Get(urlStr); ok {
		f.logger.Debug("page cache hit", zap.String("url", urlStr))
		return &CachedResult{URL: urlStr, Text: text, FromCache: true}, nil
	}

	// The scrape outlives a cancelled caller that other waiters may share it with;
	// the HTTP timeout still bounds it.
	scrapeCtx := context.WithoutCancel(ctx)
	v, err, _ := f.group.Do(urlStr, func() (any, error) {
		if text, ok := f.cache.Get(urlStr); ok {
			return text, nil
		}
		text, err := f.scrape(scrapeCtx, urlStr)
		if err != nil {
			return "", err
		}
		f.cache.Put(urlStr, text)
		return text, nil
	})
	if err != nil {
		f.logger.Warn("scrape failed", zap.String("url", urlStr), zap.Error(err))
		return nil, err
	}

	return &CachedResult{URL: urlStr, Text: v.(string), FromCache: false}, nil
}

// Cache returns the underlying page cache.
func (f *CachedFetcher) Cache() *PageCache {
	return f.cache
}

// scrape fetches a page and extracts its text, falling back to browser rendering when enabled.
func (f *CachedFetcher) scrape(ctx context.Context, urlStr string) (string, error) {
	result, err := URL(ctx, urlStr, f.options)
	if err != nil {
		return "", err
	}

	text, err := ExtractText(result.HTML, f.tags)
	if err != nil {
		return "", &ScrapeError{URL: urlStr, Message: "content extraction failed", Cause: err}
	}
	f.logger.Debug("page scraped",
		zap.String("url", urlStr),
		zap.Int("html_bytes", len(result.HTML)),
		zap.Int("text_chars", len(text)))

	if f.useBrowser && ShouldUseBrowser(text) {
		f.logger.Info("content too short, falling back to browser rendering",
			zap.String("url", urlStr),
			zap.Int("text_chars", len(text)),
			zap.Int("min_chars", MinContentLength))

		html, renderErr := f.render(ctx, urlStr)
		if renderErr != nil {
			f.logger.Warn("browser rendering failed, using HTTP content", zap.String("url", urlStr), zap.Error(renderErr))
			return text, nil
		}
		rendered, extractErr := ExtractText(html, f.tags)
		if extractErr != nil {
			return "", &ScrapeError{URL: urlStr, Message: "browser content extraction failed", Cause: extractErr}
		}
		return rendered, nil
	}

	return text, nil
}
