package llmrouter

import "testing"

func TestGetModelInfo(t *testing.T) {
	info := GetModelInfo("claude-opus-4-6")
	if info == nil {
		t.Fatal("expected catalog entry for claude-opus-4-6")
	}
	if info.Provider != ProviderClaude {
		t.Errorf("provider = %q", info.Provider)
	}

	// Alias lookup.
	if got := GetModelInfo("opus"); got == nil || got.ID != "claude-opus-4-6" {
		t.Errorf("alias lookup failed: %+v", got)
	}

	if GetModelInfo("no-such-model") != nil {
		t.Error("unknown model should return nil")
	}
}

func TestListModels(t *testing.T) {
	all := ListModels("")
	if len(all) != len(Models) {
		t.Errorf("expected %d models, got %d", len(Models), len(all))
	}

	claude := ListModels(ProviderClaude)
	for _, m := range claude {
		if m.Provider != ProviderClaude {
			t.Errorf("filter leaked %q", m.ID)
		}
	}
	if len(claude) == 0 {
		t.Error("expected at least one claude model")
	}
}

func TestDefaultModel(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderClaude, ProviderQwen} {
		id := DefaultModel(provider)
		info := GetModelInfo(id)
		if info == nil || info.Provider != provider {
			t.Errorf("DefaultModel(%s) = %q is not a catalog model of that provider", provider, id)
		}
	}
	if DefaultModel("unheard-of") == "" {
		t.Error("unknown provider should still get a usable default")
	}
}
