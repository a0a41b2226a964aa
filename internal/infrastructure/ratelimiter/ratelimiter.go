package ratelimiter

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	bucketKeyPrefix   = "rl:bucket:"
	lastFillKeyPrefix = "rl:fill:"
	defaultSourceKey  = "X-RateLimit-Key"
)

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
}

// RateLimiter is a token bucket per source key. Bucket state lives in a
// GetterSetter so it can be shared through Redis.
type RateLimiter struct {
	maxRatePerMillisecond float64
	maxBurst              int
	cache                 GetterSetter
	cacheTTL              time.Duration
	sourceHeaderKey       string
	now                   func() time.Time

	locksMu   sync.Mutex
	locks     map[string]*keyLock
	lastSweep int64 // Unix milliseconds
}

// keyLock serializes read-modify-write of one bucket. refs counts holders and
// waiters so a sweep never drops a lock in use.
type keyLock struct {
	mu       sync.Mutex
	refs     int
	lastUsed int64 // Unix milliseconds
}

type bucketState struct {
	tokens   int
	lastFill int64 // Unix milliseconds
}

// acquire locks the bucket of sourceKey and returns the matching release.
func (rl *RateLimiter) acquire(sourceKey string) func() {
	now := rl.now().UnixMilli()

	rl.locksMu.Lock()
	rl.sweepLocked(now)
	lock, ok := rl.locks[sourceKey]
	if !ok {
		lock = &keyLock{}
		rl.locks[sourceKey] = lock
	}
	lock.refs++
	lock.lastUsed = now
	rl.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		rl.locksMu.Lock()
		lock.refs--
		rl.locksMu.Unlock()
	}
}

// sweepLocked drops locks idle for a whole cacheTTL, at most once per TTL.
// Their bucket state has expired from the cache by then.
func (rl *RateLimiter) sweepLocked(now int64) {
	ttl := rl.cacheTTL.Milliseconds()
	if now-rl.lastSweep < ttl {
		return
	}
	rl.lastSweep = now

	for key, lock := range rl.locks {
		if lock.refs == 0 && now-lock.lastUsed >= ttl {
			delete(rl.locks, key)
		}
	}
}

func (rl *RateLimiter) getState(sourceKey string, now int64) bucketState {
	bucket, bucketErr := rl.cache.Get(bucketKeyPrefix + sourceKey)
	lastFill, fillErr := rl.cache.Get(lastFillKeyPrefix + sourceKey)

	// Misses and store errors both start from a full bucket, so an
	// unreachable store fails open.
	if bucketErr != nil || fillErr != nil {
		return bucketState{tokens: rl.maxBurst, lastFill: now}
	}

	return bucketState{tokens: bucket, lastFill: int64(lastFill)}
}

func (rl *RateLimiter) setState(sourceKey string, state bucketState) {
	_ = rl.cache.SetWithExpiration(bucketKeyPrefix+sourceKey, state.tokens, rl.cacheTTL)
	_ = rl.cache.SetWithExpiration(lastFillKeyPrefix+sourceKey, int(state.lastFill), rl.cacheTTL)
}

// refillTokens adds whole tokens for the elapsed time. lastFill only moves by
// the time those tokens account for, so partial progress is kept.
func (rl *RateLimiter) refillTokens(state bucketState, now int64) bucketState {
	elapsed := now - state.lastFill
	if elapsed <= 0 || rl.maxRatePerMillisecond <= 0 {
		return state
	}

	whole := int(float64(elapsed) * rl.maxRatePerMillisecond)
	if whole == 0 {
		return state
	}

	if state.tokens+whole >= rl.maxBurst {
		return bucketState{tokens: rl.maxBurst, lastFill: now}
	}

	return bucketState{
		tokens:   state.tokens + whole,
		lastFill: state.lastFill + int64(float64(whole)/rl.maxRatePerMillisecond),
	}
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	release := rl.acquire(sourceKey)
	defer release()

	now := rl.now().UnixMilli()
	state := rl.getState(sourceKey, now)
	newState := rl.refillTokens(state, now)

	if newState != state {
		rl.setState(sourceKey, newState)
	}

	return newState.tokens
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	release := rl.acquire(sourceKey)
	defer release()

	now := rl.now().UnixMilli()
	state := rl.getState(sourceKey, now)
	newState := rl.refillTokens(state, now)

	if newState.tokens > 0 {
		newState.tokens--
		rl.setState(sourceKey, newState)
		return true
	}

	if newState != state {
		rl.setState(sourceKey, newState)
	}

	return false
}

// Forget drops the per-key lock once a source is gone for good.
func (rl *RateLimiter) Forget(sourceKey string) {
	rl.locksMu.Lock()
	defer rl.locksMu.Unlock()

	if lock, ok := rl.locks[sourceKey]; ok && lock.refs == 0 {
		delete(rl.locks, sourceKey)
	}
}

func (rl *RateLimiter) trackedKeys() int {
	rl.locksMu.Lock()
	defer rl.locksMu.Unlock()
	return len(rl.locks)
}

func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
		// X-Forwarded-For style headers carry the client first.
		first, _, _ := strings.Cut(key, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            GetterSetter
	CacheTTL         time.Duration
	SourceHeaderKey  string
}

var ErrInvalidRate = errors.New("ratelimiter: rate must be positive")

func New(options Options) (*RateLimiter, error) {
	if options.MaxRatePerSecond <= 0 {
		return nil, ErrInvalidRate
	}
	if options.Cache == nil {
		options.Cache = NewInMemory()
	}
	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}
	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}
	if options.SourceHeaderKey == "" {
		options.SourceHeaderKey = defaultSourceKey
	}

	return &RateLimiter{
		maxRatePerMillisecond: float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:              options.MaxBurst,
		cache:                 options.Cache,
		cacheTTL:              options.CacheTTL,
		sourceHeaderKey:       options.SourceHeaderKey,
		now:                   time.Now,
		locks:                 make(map[string]*keyLock),
	}, nil
}
