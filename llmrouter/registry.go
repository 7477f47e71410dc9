package llmrouter

import "sync"

// adapterKey identifies one adapter instance. Exactly one adapter exists per
// distinct key for the lifetime of a Manager.
type adapterKey struct {
	Provider string
	Model    string
	BaseURL  string
}

type adapterEntry struct {
	once    sync.Once
	adapter ModelAdapter
	err     error
}

// adapterRegistry is the lazily populated adapter cache. The map is guarded
// by a mutex only long enough to install an entry; construction itself runs
// under the entry's sync.Once so concurrent first access builds the adapter
// at most once per key.
type adapterRegistry struct {
	mu        sync.Mutex
	entries   map[adapterKey]*adapterEntry
	construct func(ProviderConfig) (ModelAdapter, error)
}

func newAdapterRegistry() *adapterRegistry {
	return &adapterRegistry{
		entries:   make(map[adapterKey]*adapterEntry),
		construct: newAdapter,
	}
}

// adapterFor returns the cached adapter for cfg, constructing it on first
// access. A failed construction is cached too: the same configuration error
// is returned on every subsequent lookup rather than re-dialing the vendor.
func (r *adapterRegistry) adapterFor(cfg ProviderConfig) (ModelAdapter, error) {
	cfg = normalized(cfg)

	r.mu.Lock()
	entry, ok := r.entries[cfg.key()]
	if !ok {
		entry = &adapterEntry{}
		r.entries[cfg.key()] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.adapter, entry.err = r.construct(cfg)
	})
	return entry.adapter, entry.err
}

// size returns the number of cache entries, for tests.
func (r *adapterRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// normalized fills in the provider's default model so that an empty model
// and an explicit default model resolve to the same cache key.
func normalized(cfg ProviderConfig) ProviderConfig {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}
	return cfg
}

// newAdapter constructs the concrete vendor adapter for cfg. This switch is
// the only place in the package that inspects the provider name; everything
// downstream works against the ModelAdapter interface.
func newAdapter(cfg ProviderConfig) (ModelAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return newOpenAIAdapter(cfg), nil
	case ProviderClaude:
		return newClaudeAdapter(cfg), nil
	case ProviderQwen:
		return newQwenAdapter(cfg), nil
	case ProviderCustom:
		return newGollmAdapter(cfg)
	default:
		return nil, NewModelError(CodeInvalidRequest, cfg.Provider, "unknown provider", nil)
	}
}
