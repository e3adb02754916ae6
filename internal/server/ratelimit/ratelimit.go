// Package ratelimit limits requests per client and endpoint with fixed-window counters.
// A window of length Window starts at now.Truncate(Window); at most Limit requests are
// allowed in it and the count resets when the next window begins.
package ratelimit

import (
	"sync"
	"time"
)

// windowCounter counts requests in the current fixed window.
type windowCounter struct {
	limit  int
	window time.Duration
	start  time.Time
	count  int
	mu     sync.Mutex
}

func newWindowCounter(limit int, window time.Duration) *windowCounter {
	return &windowCounter{limit: limit, window: window}
}

// allow records a request at now if the window has room. It returns the requests
// left in the window and when the window ends.
func (wc *windowCounter) allow(now time.Time) (allowed bool, remaining int, resetTime time.Time) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	start := now.Truncate(wc.window)
	if !start.Equal(wc.start) {
		wc.start = start
		wc.count = 0
	}
	resetTime = start.Add(wc.window)

	if wc.count >= wc.limit {
		return false, 0, resetTime
	}
	wc.count++
	return true, wc.limit - wc.count, resetTime
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Endpoint   *EndpointConfig
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages rate limiting for multiple clients using fixed-window counters.
type Limiter struct {
	counters      map[string]*windowCounter // client:path:method -> counter
	mu            sync.RWMutex
	config        *Config
	now           func() time.Time
	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
	lastAccess    map[string]time.Time
	accessMu      sync.RWMutex
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
	// Clock overrides time.Now.
	Clock func() time.Time
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
			Whitelist:       make(map[string]bool),
			Blacklist:       make(map[string]bool),
		}
	}

	limiter := &Limiter{
		counters:   make(map[string]*windowCounter),
		config:     config,
		now:        time.Now,
		lastAccess: make(map[string]time.Time),
	}
	if config.Clock != nil {
		limiter.now = config.Clock
	}

	// Start cleanup goroutine if enabled
	if config.Enabled && config.CleanupInterval > 0 {
		limiter.cleanupTicker = time.NewTicker(config.CleanupInterval)
		limiter.cleanupStop = make(chan struct{})
		go limiter.cleanup()
	}

	return limiter
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
// Returns true if allowed, false if rate limited, along with rate limit information.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	// Check if rate limiting is disabled
	if !l.config.Enabled {
		return true, Info{
			Allowed:   true,
			Limit:     0,
			Remaining: 0,
		}
	}

	// Check whitelist
	if l.config.Whitelist[clientID] {
		return true, Info{
			Allowed:   true,
			Limit:     0,
			Remaining: 0,
		}
	}

	// Check blacklist
	if l.config.Blacklist[clientID] {
		return false, Info{
			Allowed:   false,
			Limit:     0,
			Remaining: 0,
		}
	}

	// Find matching endpoint configuration
	endpointConfig := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if endpointConfig == nil {
		// Use global default
		endpointConfig = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
		}
	}

	// Unlimited endpoint (e.g., health check)
	if endpointConfig.Limit <= 0 {
		return true, Info{
			Allowed:   true,
			Limit:     0,
			Remaining: 0,
		}
	}

	// Prefix-matched configs share one counter per client
	path := endpoint
	if endpointConfig.Path != "" {
		path = endpointConfig.Path
	}
	key := clientID + ":" + path + ":" + method
	counter := l.getCounter(key, endpointConfig.Limit, endpointConfig.Window)

	now := l.now()
	l.accessMu.Lock()
	l.lastAccess[key] = now
	l.accessMu.Unlock()

	allowed, remaining, resetTime := counter.allow(now)

	var retryAfter time.Duration
	if !allowed {
		retryAfter = max(resetTime.Sub(now), 0)
	}

	return allowed, Info{
		Allowed:    allowed,
		Endpoint:   endpointConfig,
		Limit:      endpointConfig.Limit,
		Remaining:  remaining,
		ResetTime:  resetTime,
		RetryAfter: retryAfter,
	}
}

// getCounter gets or creates the window counter for the given key.
func (l *Limiter) getCounter(key string, limit int, window time.Duration) *windowCounter {
	l.mu.RLock()
	counter, exists := l.counters[key]
	l.mu.RUnlock()

	if exists {
		return counter
	}

	if window <= 0 {
		window = time.Minute
	}
	counter = newWindowCounter(limit, window)

	l.mu.Lock()
	// Double-check after acquiring write lock
	if existing, exists := l.counters[key]; exists {
		l.mu.Unlock()
		return existing
	}
	l.counters[key] = counter
	l.mu.Unlock()

	return counter
}

// cleanup periodically drops idle counters.
func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupCounters()
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupCounters removes counters that haven't been accessed in over an hour.
func (l *Limiter) cleanupCounters() {
	cutoff := l.now().Add(-1 * time.Hour)

	l.accessMu.RLock()
	keysToCheck := make([]string, 0, len(l.lastAccess))
	for key := range l.lastAccess {
		keysToCheck = append(keysToCheck, key)
	}
	l.accessMu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.accessMu.Lock()
	defer l.accessMu.Unlock()

	for _, key := range keysToCheck {
		if lastAccess, exists := l.lastAccess[key]; exists && lastAccess.Before(cutoff) {
			delete(l.counters, key)
			delete(l.lastAccess, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}

// Len returns the number of live counters.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.counters)
}
