package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/cache"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
)

// BackendFactory binds the Session Store to one browser session id.
type BackendFactory func(sid string) SessionBackend

// ProviderRegistry keeps one Provider per browser session. Idle providers
// are evicted after the TTL and torn down.
type ProviderRegistry struct {
	providers *cache.InMemory[*Provider]
	factory   BackendFactory
	cfg       ProviderConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewProviderRegistry(idleTTL time.Duration, factory BackendFactory, cfg ProviderConfig, metrics *observability.Metrics, logger *zap.Logger) *ProviderRegistry {
	r := &ProviderRegistry{
		factory: factory,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
	r.providers = cache.New[*Provider](idleTTL,
		cache.WithSlidingExpiry[*Provider](),
		cache.WithOnEvict(func(sid string, p *Provider) {
			p.Close()
		}),
	)
	return r
}

// Get returns the provider for sid, mounting a new one at path when the
// browser session has none.
func (r *ProviderRegistry) Get(sid, path string) (*Provider, error) {
	p, existed, err := r.providers.GetOrCreate(sid, func() (*Provider, error) {
		p := NewProvider(sid, r.factory(sid), path, r.cfg, r.metrics, r.logger)
		if err := p.Mount(); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	if existed {
		r.metrics.IncrCacheHit("providers")
	} else {
		r.metrics.IncrCacheMiss("providers")
	}
	return p, nil
}

// Lookup returns the provider for sid without creating one.
func (r *ProviderRegistry) Lookup(sid string) (*Provider, bool) {
	return r.providers.Get(sid)
}

// Len is the number of live browser sessions.
func (r *ProviderRegistry) Len() int {
	return r.providers.Len()
}

// Close tears down every provider.
func (r *ProviderRegistry) Close() {
	r.providers.Close()
}
