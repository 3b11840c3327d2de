package shatter

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	// Rate is the sustained calls-per-second budget per key.
	Rate float64
	// Burst is the token bucket capacity.
	Burst int
	// KeyFunc derives the limiter key; defaults to the request remote address.
	KeyFunc func(ctx *CallCtx) string
	// OnLimit builds the response for a limited call; defaults to a 429
	// carrying a Retry-After header.
	OnLimit func(ctx *CallCtx) *Response
	// CleanupInterval is how often idle limiters are pruned (default 1m).
	CleanupInterval time.Duration
	// MaxIdle is how long an unused key's limiter survives (default 5m).
	MaxIdle time.Duration
}

// RetryHeaders is the header model of a rate-limited response.
type RetryHeaders struct {
	ContentType string `json:"content_type" header:"Content-Type"`
	RetryAfter  string `json:"retry_after" header:"Retry-After"`
}

// RateLimitedData is the payload of a rate-limited response.
type RateLimitedData struct {
	Detail string `json:"detail"`
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns middleware applying per-key token-bucket rate limiting.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(ctx *CallCtx) string {
			if req := ctx.Request(); req != nil {
				return req.Remote
			}
			return ""
		}
	}
	if cfg.OnLimit == nil {
		retryAfter := strconv.FormatFloat(1/cfg.Rate, 'f', 0, 64)
		cfg.OnLimit = func(*CallCtx) *Response {
			return NewResponse(
				RateLimitedData{Detail: http.StatusText(http.StatusTooManyRequests)},
				http.StatusTooManyRequests,
				RetryHeaders{ContentType: "application/json", RetryAfter: retryAfter},
			)
		}
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 * time.Minute
	}

	return &rateLimiter{
		cfg:      cfg,
		limiters: make(map[string]*limiterEntry),
	}
}

// Responses implements ResponseDeclarer: a limited call produces the 429
// arm, anything else whatever the inner handler declares.
func (rl *rateLimiter) Responses() []ResponseDecl {
	return []ResponseDecl{
		ResponseWithHeaderOf[RateLimitedData, RetryHeaders](http.StatusTooManyRequests),
		Inherited(),
	}
}

func (rl *rateLimiter) Handle(ctx *CallCtx, next CallNext) (*Response, error) {
	key := rl.cfg.KeyFunc(ctx)

	rl.mu.Lock()
	now := time.Now()

	// Lazy cleanup of expired limiters.
	if now.Sub(rl.lastCleanup) >= rl.cfg.CleanupInterval {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > rl.cfg.MaxIdle {
				delete(rl.limiters, k)
			}
		}
		rl.lastCleanup = now
	}

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.cfg.Rate), rl.cfg.Burst),
		}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	rl.mu.Unlock()

	if !entry.limiter.Allow() {
		return rl.cfg.OnLimit(ctx), nil
	}

	return next(ctx)
}
