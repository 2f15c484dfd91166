package embedding

import (
	"context"
	"hash/fnv"

	"github.com/hyperjump/resumatch/internal/textnorm"
)

// HashEmbedder is the deterministic fallback: position i holds
// (fnv1a32(word_i) mod 1000) / 1000 for the first Dimensions() words.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder producing vectors of the given length.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed never fails. Empty text embeds to the zero vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for i, word := range textnorm.Words(text) {
		if i >= e.dimensions {
			break
		}
		vec[i] = float32(StableHash(word)%1000) / 1000.0
	}
	return vec, nil
}

func (e *HashEmbedder) Dimensions() int { return e.dimensions }

func (e *HashEmbedder) Name() string { return BackendHash }

func (e *HashEmbedder) Close() error { return nil }

// StableHash is 32-bit FNV-1a of s. It does not vary between runs.
func StableHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
