package llmrouter

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistryConstructsOncePerKey(t *testing.T) {
	var constructed int32
	r := newAdapterRegistry()
	r.construct = func(cfg ProviderConfig) (ModelAdapter, error) {
		atomic.AddInt32(&constructed, 1)
		return &mockModelAdapter{provider: cfg.Provider, model: cfg.Model}, nil
	}

	cfg := ProviderConfig{Provider: ProviderOpenAI, APIKey: "k", Model: "gpt-5.2"}

	var wg sync.WaitGroup
	adapters := make([]ModelAdapter, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := r.adapterFor(cfg)
			if err != nil {
				t.Errorf("adapterFor: %v", err)
				return
			}
			adapters[i] = a
		}(i)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&constructed); n != 1 {
		t.Errorf("expected exactly 1 construction, got %d", n)
	}
	for i := 1; i < len(adapters); i++ {
		if adapters[i] != adapters[0] {
			t.Fatal("concurrent lookups returned different instances")
		}
	}
}

func TestRegistryDistinctKeys(t *testing.T) {
	r := newAdapterRegistry()
	r.construct = func(cfg ProviderConfig) (ModelAdapter, error) {
		return &mockModelAdapter{provider: cfg.Provider, model: cfg.Model}, nil
	}

	a1, _ := r.adapterFor(ProviderConfig{Provider: ProviderOpenAI, Model: "gpt-5.2"})
	a2, _ := r.adapterFor(ProviderConfig{Provider: ProviderOpenAI, Model: "gpt-5.2-mini"})
	a3, _ := r.adapterFor(ProviderConfig{Provider: ProviderOpenAI, Model: "gpt-5.2", BaseURL: "https://proxy.internal/v1"})

	if a1 == a2 {
		t.Error("different models must get different adapters")
	}
	if a1 == a3 {
		t.Error("different base URLs must get different adapters")
	}
	if r.size() != 3 {
		t.Errorf("expected 3 cache entries, got %d", r.size())
	}
}

func TestRegistryCachesConstructionFailure(t *testing.T) {
	var constructed int32
	r := newAdapterRegistry()
	r.construct = func(cfg ProviderConfig) (ModelAdapter, error) {
		atomic.AddInt32(&constructed, 1)
		return nil, NewModelError(CodeInvalidRequest, cfg.Provider, "bad config", nil)
	}

	cfg := ProviderConfig{Provider: ProviderOpenAI, Model: "gpt-5.2"}
	_, err1 := r.adapterFor(cfg)
	_, err2 := r.adapterFor(cfg)

	if err1 == nil || err2 == nil {
		t.Fatal("expected construction errors")
	}
	if atomic.LoadInt32(&constructed) != 1 {
		t.Errorf("failed construction must be cached, got %d constructions", constructed)
	}
}

func TestRegistryNormalizesEmptyModel(t *testing.T) {
	r := newAdapterRegistry()
	r.construct = func(cfg ProviderConfig) (ModelAdapter, error) {
		return &mockModelAdapter{provider: cfg.Provider, model: cfg.Model}, nil
	}

	a1, _ := r.adapterFor(ProviderConfig{Provider: ProviderClaude})
	a2, _ := r.adapterFor(ProviderConfig{Provider: ProviderClaude, Model: DefaultModel(ProviderClaude)})

	if a1 != a2 {
		t.Error("empty model and explicit default model must share one adapter")
	}
	if r.size() != 1 {
		t.Errorf("expected 1 cache entry, got %d", r.size())
	}
}
