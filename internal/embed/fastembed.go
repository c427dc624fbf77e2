//go:build fastembed

package embed

import (
	"context"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedOptions configures the on-disk ONNX model.
type FastEmbedOptions struct {
	Model     string // empty picks bge-small-en-v1.5
	CacheDir  string // where model files live, e.g. ".fastembed"
	MaxLength int    // token limit, 0 = library default
}

// FastEmbedProvider runs a local ONNX embedding model. Fully offline after
// the model files are on disk, which is the product requirement here.
type FastEmbedProvider struct {
	opts FastEmbedOptions

	mu    sync.Mutex
	model *fastembed.FlagEmbedding
}

// NewFastEmbed builds an unloaded provider; call Load before Embed.
func NewFastEmbed(opts FastEmbedOptions) *FastEmbedProvider {
	if opts.CacheDir == "" {
		opts.CacheDir = ".fastembed"
	}
	return &FastEmbedProvider{opts: opts}
}

func (p *FastEmbedProvider) Load(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return nil
	}
	model, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:     fastembed.EmbeddingModel(p.opts.Model),
		CacheDir:  p.opts.CacheDir,
		MaxLength: p.opts.MaxLength,
	})
	if err != nil {
		return err
	}
	p.model = model
	return nil
}

func (p *FastEmbedProvider) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model != nil
}

func (p *FastEmbedProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	model := p.model
	p.mu.Unlock()
	if model == nil {
		return nil, ErrNotReady
	}
	return model.QueryEmbed(text)
}

// Close releases the ONNX session.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		p.model.Destroy()
		p.model = nil
	}
	return nil
}
