//go:build !fastembed

package embed

import (
	"context"
	"errors"
)

// FastEmbedOptions configures the on-disk ONNX model.
type FastEmbedOptions struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedProvider requires the fastembed build tag (onnxruntime must be
// available at link time). Without it Load always fails and callers fall
// back to another provider.
type FastEmbedProvider struct{}

func NewFastEmbed(FastEmbedOptions) *FastEmbedProvider { return &FastEmbedProvider{} }

func (*FastEmbedProvider) Load(context.Context) error {
	return errors.New("fastembed support not included; rebuild with -tags fastembed")
}

func (*FastEmbedProvider) Ready() bool { return false }

func (*FastEmbedProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrNotReady
}

func (*FastEmbedProvider) Close() error { return nil }
