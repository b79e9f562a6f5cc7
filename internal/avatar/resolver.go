package avatar

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chat-sync/internal/logger"
	"chat-sync/internal/observability"
)

// URLSource resolves storage paths; storage.ObjectStore satisfies it.
type URLSource interface {
	URL(ctx context.Context, objectPath string) (string, error)
}

// Cache remembers resolved storage paths.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Resolver maps avatar references to URLs. It never fails: anything that
// cannot be resolved becomes the placeholder.
type Resolver struct {
	source      URLSource
	cache       Cache
	ttl         time.Duration
	placeholder string
}

// NewResolver builds a Resolver. cache may be nil.
func NewResolver(source URLSource, cache Cache, ttl time.Duration, placeholder string) *Resolver {
	return &Resolver{source: source, cache: cache, ttl: ttl, placeholder: placeholder}
}

// Resolve returns a displayable URL for the raw reference.
func (r *Resolver) Resolve(ctx context.Context, raw string) string {
	ref := ParseRef(raw)
	switch ref.Kind {
	case KindURL:
		return ref.Value
	case KindStoragePath:
		return r.resolvePath(ctx, ref.Value)
	default:
		observability.AvatarResolutions.WithLabelValues("placeholder").Inc()
		return r.placeholder
	}
}

func (r *Resolver) resolvePath(ctx context.Context, path string) string {
	key := "avatar:" + path
	if r.cache != nil {
		url, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			logger.Log.Warn("avatar_cache_get_failed", zap.String("path", path), zap.Error(err))
		} else if ok {
			observability.AvatarResolutions.WithLabelValues("cache").Inc()
			return url
		}
	}

	if r.source == nil {
		observability.AvatarResolutions.WithLabelValues("placeholder").Inc()
		return r.placeholder
	}
	url, err := r.source.URL(ctx, path)
	if err != nil || url == "" {
		logger.Log.Debug("avatar_resolve_failed", zap.String("path", path), zap.Error(err))
		observability.AvatarResolutions.WithLabelValues("placeholder").Inc()
		return r.placeholder
	}
	observability.AvatarResolutions.WithLabelValues("storage").Inc()

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, url, r.ttl); err != nil {
			logger.Log.Warn("avatar_cache_set_failed", zap.String("path", path), zap.Error(err))
		}
	}
	return url
}
