package main

import (
	"fmt"

	"github.com/openclaude/agentcore/internal/config"
	"github.com/openclaude/agentcore/internal/providers"
	"github.com/openclaude/agentcore/internal/providers/anthropic"
	"github.com/openclaude/agentcore/internal/providers/bedrock"
	"github.com/openclaude/agentcore/internal/providers/google"
	"github.com/openclaude/agentcore/internal/providers/openaichat"
	"github.com/openclaude/agentcore/internal/providers/responses"
)

// buildAdapterRegistry registers the single providers.Adapter that serves
// cfg.API. Every adapter in internal/providers is wired to some API
// identifier here; only the one matching the session's configured
// provider is actually resolved for a given run, but all five are valid
// choices of cfg.API.
func buildAdapterRegistry(cfg *config.ProviderConfig) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	switch cfg.API {
	case "anthropic-messages":
		registry.RegisterAPI(cfg.API, anthropic.New())
	case "bedrock-converse-stream":
		registry.RegisterAPI(cfg.API, bedrock.New())
	case "openai-completions":
		registry.RegisterAPI(cfg.API, openaichat.New())
	case "google-generative-ai", "google-vertex":
		registry.RegisterAPI(cfg.API, google.New(cfg.API))
	case "openai-responses", "azure-responses", "codex-responses":
		registry.RegisterAPI(cfg.API, responses.New(cfg.API))
	default:
		return nil, fmt.Errorf("unknown provider api %q", cfg.API)
	}

	return registry, nil
}
