package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
)

// HashEmbeddingDimension matches the width the platform has always used for
// the development provider.
const HashEmbeddingDimension = 384

// HashEmbeddingProvider is the fallback EmbeddingProvider used when no real
// embedding model is configured. Vectors are derived from a content hash, so
// the provider gives exact and near-exact text matching only: there is no
// semantic similarity between different texts. Callers must not assume
// semantic quality from this variant.
type HashEmbeddingProvider struct{}

func NewHashEmbeddingProvider() *HashEmbeddingProvider {
	return &HashEmbeddingProvider{}
}

func (p *HashEmbeddingProvider) Name() string   { return "hash" }
func (p *HashEmbeddingProvider) Dimension() int { return HashEmbeddingDimension }

// Embed hashes the text and spreads the digest bytes over [-1, 1],
// zero-padded out to the fixed dimension.
func (p *HashEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", ErrEmbeddingFailed)
	}

	digest := sha256.Sum256([]byte(text))
	vector := make([]float32, HashEmbeddingDimension)
	for i, b := range digest {
		vector[i] = float32(b)/255.0*2 - 1
	}

	return vector, nil
}

// EmbedBatch embeds each text independently; there is no cross-item
// interaction, so batches reproduce one-at-a-time results exactly.
func (p *HashEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}
