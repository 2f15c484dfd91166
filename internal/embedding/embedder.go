// Package embedding turns normalized text into fixed-length vectors.
package embedding

import (
	"context"
	"errors"
)

// DefaultDimensions is the vector length produced by every backend.
const DefaultDimensions = 384

// ErrDisabled is returned by the disabled backend so callers fall back to token overlap.
var ErrDisabled = errors.New("embedding backend disabled")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	// Name identifies the backend in logs and status output.
	Name() string
	Close() error
}

// Disabled is an Embedder that always fails with ErrDisabled.
type Disabled struct{}

func (Disabled) Embed(context.Context, string) ([]float32, error) { return nil, ErrDisabled }
func (Disabled) Dimensions() int                                  { return DefaultDimensions }
func (Disabled) Name() string                                     { return BackendNone }
func (Disabled) Close() error                                     { return nil }
