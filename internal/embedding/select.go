package embedding

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/pkg/utils"
)

// Backend names accepted by Select.
const (
	BackendAuto = "auto"
	BackendONNX = "onnx"
	BackendHash = "hash"
	BackendNone = "none"
)

// Options configures backend selection.
type Options struct {
	Backend     string
	ModelPath   string
	LibraryPath string
	Dimensions  int
	MaxTokens   int
	CacheSize   int
	// Lazy defers the semantic model load to the first Embed call.
	Lazy bool
}

// Select chooses the embedder for the process lifetime. "auto" probes the ONNX
// model and falls back to the hash embedder if it cannot be loaded; "onnx" makes
// a load failure fatal. The result is never re-probed.
func Select(opts Options, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	if opts.Dimensions <= 0 {
		opts.Dimensions = DefaultDimensions
	}

	loadONNX := func() (Embedder, error) {
		return NewONNXEmbedder(opts.ModelPath, opts.LibraryPath, opts.Dimensions, opts.MaxTokens)
	}

	var e Embedder
	switch opts.Backend {
	case BackendNone:
		return Disabled{}, nil
	case BackendHash:
		e = NewHashEmbedder(opts.Dimensions)
	case BackendONNX:
		onnx, err := loadONNX()
		if err != nil {
			return nil, fmt.Errorf("load onnx model %s: %w", opts.ModelPath, err)
		}
		e = onnx
	case BackendAuto, "":
		fallback := NewHashEmbedder(opts.Dimensions)
		if opts.Lazy {
			e = NewLazy(loadONNX, fallback, logger)
			break
		}
		onnx, err := loadONNX()
		if err != nil {
			logger.Warn("semantic model unavailable, using hash embeddings",
				zap.String("model_path", opts.ModelPath), zap.Error(err))
			e = fallback
		} else {
			e = onnx
		}
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", opts.Backend)
	}

	logger.Info("embedding backend selected", zap.String("backend", e.Name()), zap.Int("dimensions", e.Dimensions()))
	if opts.CacheSize > 0 {
		return NewCachedEmbedder(e, opts.CacheSize), nil
	}
	return e, nil
}

// Lazy loads a semantic embedder on first use. If the load fails, the fallback is
// used for every later call; the load is attempted exactly once even under
// concurrent first calls.
type Lazy struct {
	load     func() (Embedder, error)
	fallback Embedder
	logger   *zap.Logger

	once     sync.Once
	resolved Embedder
}

// NewLazy returns a Lazy embedder.
func NewLazy(load func() (Embedder, error), fallback Embedder, logger *zap.Logger) *Lazy {
	return &Lazy{load: load, fallback: fallback, logger: utils.OrNop(logger)}
}

func (l *Lazy) get() Embedder {
	l.once.Do(func() {
		e, err := l.load()
		if err != nil {
			l.logger.Warn("semantic model unavailable, using fallback embeddings", zap.Error(err))
			l.resolved = l.fallback
			return
		}
		l.resolved = e
	})
	return l.resolved
}

func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	return l.get().Embed(ctx, text)
}

// Dimensions reports the resolved backend's vector size, loading it if needed.
func (l *Lazy) Dimensions() int { return l.get().Dimensions() }

// Name reports the resolved backend, loading it if needed.
func (l *Lazy) Name() string { return l.get().Name() }

func (l *Lazy) Close() error {
	e := l.get()
	if e != l.fallback {
		_ = l.fallback.Close()
	}
	return e.Close()
}
