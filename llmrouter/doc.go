// Package llmrouter routes model requests to vendor adapters behind a single
// provider-agnostic interface.
//
// # Architecture
//
//   - ModelAdapter: the vendor boundary. One implementation per provider
//     (openai, claude, qwen, plus a gollm-backed custom slot).
//   - adapterRegistry: a lazy cache keyed by (provider, model, base URL) so
//     each distinct configuration constructs exactly one adapter.
//   - Manager: routing, retry with exponential backoff, and single-shot
//     fallback. All errors surface as *ModelError with a stable code.
//
// # Quick Start
//
//	cfg, _ := llmrouter.LoadManagerConfig("models.yaml")
//	mgr, _ := llmrouter.NewManager(cfg)
//
//	resp, err := mgr.GenerateWithTools(ctx, "coding", []llmrouter.Message{
//	    llmrouter.UserMessage("List the files in /tmp"),
//	}, tools, llmrouter.GenerateOptions{})
//
// Task names resolve through the config's task table when multi-model mode
// is on; unknown tasks and single-model mode use the default provider.
//
// # Errors
//
// Every error leaving the package is a *ModelError carrying one of the codes
// in errors.go. Retry applies only to RATE_LIMIT_ERROR and NETWORK_ERROR;
// CANCELLED is never retried and always wins over fallback handling.
package llmrouter
