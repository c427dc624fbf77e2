package embed

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ollama/ollama/api"
)

// OllamaProvider embeds through a local Ollama daemon. Still offline in
// the no-network sense: the daemon runs on this machine.
type OllamaProvider struct {
	client *api.Client
	model  string
	ready  atomic.Bool
}

// NewOllama builds a provider against OLLAMA_HOST (or the default local
// daemon address). Model defaults to nomic-embed-text.
func NewOllama(model string) (*OllamaProvider, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return &OllamaProvider{client: client, model: model}, nil
}

func (p *OllamaProvider) Load(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	p.ready.Store(true)
	return nil
}

func (p *OllamaProvider) Ready() bool { return p.ready.Load() }

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if !p.ready.Load() {
		return nil, ErrNotReady
	}
	resp, err := p.client.Embeddings(ctx, &api.EmbeddingRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
