package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// DefaultRateLimit applies to sign-in and upload endpoints until an operator
// stores another rate.
const DefaultRateLimit = "5-S"

// RatelimitConfigSource loads and stores the configured rate.
type RatelimitConfigSource interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// RateLimitReloader wraps ulule/limiter and periodically reloads the rate
// from the database.
type RateLimitReloader struct {
	store       limiter.Store
	repo        RatelimitConfigSource
	defaultRate string
	log         *zap.Logger
	interval    time.Duration

	mu      sync.RWMutex
	current *stdlibmw.Middleware
	rate    string
}

// NewRateLimitReloader creates a reloader counting hits in Redis, or in
// process memory when redisClient is nil.
func NewRateLimitReloader(redisClient *redis.Client, repo RatelimitConfigSource, defaultRate string, log *zap.Logger, reloadInterval time.Duration) (*RateLimitReloader, error) {
	if defaultRate == "" {
		defaultRate = DefaultRateLimit
	}
	var store limiter.Store
	if redisClient != nil {
		var err error
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "tagdesk_limiter"})
		if err != nil {
			return nil, err
		}
	} else {
		store = memorystore.NewStore()
	}
	r := &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
	r.load(context.Background())
	return r, nil
}

// Middleware wraps next with the current limiter. The limiter is looked up
// per request so reloads take effect without rebuilding the chain.
func (r *RateLimitReloader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.RLock()
		mw := r.current
		r.mu.RUnlock()
		if mw == nil {
			next.ServeHTTP(w, req)
			return
		}
		mw.Handler(next).ServeHTTP(w, req)
	})
}

// Rate returns the rate currently enforced.
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

// Start runs the reload loop until ctx is cancelled.
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

func (r *RateLimitReloader) load(ctx context.Context) {
	rateStr := r.defaultRate
	if r.repo != nil {
		cfg, err := r.repo.Get(ctx)
		switch {
		case err != nil:
			r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		case cfg != nil && cfg.Rate != "":
			rateStr = cfg.Rate
		default:
			if err = r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
				r.log.Error("failed_to_save_default_ratelimit_config",
					zap.Error(err),
					zap.String("default_rate", r.defaultRate),
				)
			}
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
			zap.String("default_rate", r.defaultRate),
		)
		rateStr = r.defaultRate
		rate, err = limiter.NewRateFromFormatted(rateStr)
		if err != nil {
			r.log.Error("failed_to_parse_default_rate_limit",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
			return
		}
	}

	r.mu.RLock()
	unchanged := r.current != nil && r.rate == rateStr
	r.mu.RUnlock()
	if unchanged {
		return
	}

	instance := limiter.New(r.store, rate)
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(func(req *http.Request) string {
		return request.ClientIP(req)
	}))

	r.mu.Lock()
	r.current = mw
	r.rate = rateStr
	r.mu.Unlock()
	r.log.Info("ratelimit_config_loaded", zap.String("rate", rateStr))
}
