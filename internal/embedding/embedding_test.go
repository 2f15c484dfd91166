package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableHash(t *testing.T) {
	// FNV-1a 32 reference values.
	assert.Equal(t, uint32(0x811c9dc5), StableHash(""))
	assert.Equal(t, uint32(0xe40c292c), StableHash("a"))
	assert.Equal(t, StableHash("python"), StableHash("python"))
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(0)
	ctx := context.Background()
	require.Equal(t, DefaultDimensions, e.Dimensions())

	t.Run("empty text is the zero vector", func(t *testing.T) {
		for _, text := range []string{"", "   \n\t"} {
			v, err := e.Embed(ctx, text)
			require.NoError(t, err)
			require.Len(t, v, DefaultDimensions)
			for _, x := range v {
				assert.Zero(t, x)
			}
		}
	})

	t.Run("positions follow word order", func(t *testing.T) {
		v, err := e.Embed(ctx, "Python  FLASK")
		require.NoError(t, err)
		assert.Equal(t, float32(StableHash("python")%1000)/1000.0, v[0])
		assert.Equal(t, float32(StableHash("flask")%1000)/1000.0, v[1])
		assert.Zero(t, v[2])
	})

	t.Run("deterministic", func(t *testing.T) {
		a, _ := e.Embed(ctx, "senior go engineer")
		b, _ := NewHashEmbedder(DefaultDimensions).Embed(ctx, "senior go engineer")
		assert.Equal(t, a, b)
	})

	t.Run("only first dimensions words count", func(t *testing.T) {
		small := NewHashEmbedder(3)
		v, err := small.Embed(ctx, strings.Repeat("word ", 10))
		require.NoError(t, err)
		assert.Len(t, v, 3)
	})
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSelect(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		e, err := Select(Options{Backend: BackendNone}, nil)
		require.NoError(t, err)
		assert.Equal(t, BackendNone, e.Name())
	})

	t.Run("hash with cache", func(t *testing.T) {
		e, err := Select(Options{Backend: BackendHash, CacheSize: 4}, nil)
		require.NoError(t, err)
		assert.IsType(t, &CachedEmbedder{}, e)
		assert.Equal(t, BackendHash, e.Name())
	})

	t.Run("auto falls back when the model is missing", func(t *testing.T) {
		e, err := Select(Options{Backend: BackendAuto, ModelPath: "/nonexistent/model.onnx", MaxTokens: 16}, nil)
		require.NoError(t, err)
		assert.Equal(t, BackendHash, e.Name())
	})

	t.Run("onnx is strict", func(t *testing.T) {
		_, err := Select(Options{Backend: BackendONNX, ModelPath: "/nonexistent/model.onnx", MaxTokens: 16}, nil)
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Select(Options{Backend: "word2vec"}, nil)
		assert.Error(t, err)
	})
}

func TestLazy_LoadsOnceUnderConcurrency(t *testing.T) {
	var loads int32
	l := NewLazy(func() (Embedder, error) {
		atomic.AddInt32(&loads, 1)
		return nil, errors.New("no model")
	}, NewHashEmbedder(DefaultDimensions), nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Embed(context.Background(), "go developer")
			assert.NoError(t, err)
			assert.Len(t, v, DefaultDimensions)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	assert.Equal(t, BackendHash, l.Name())
}

func TestLazy_DimensionsFollowLoadedBackend(t *testing.T) {
	l := NewLazy(func() (Embedder, error) {
		return NewHashEmbedder(64), nil
	}, NewHashEmbedder(DefaultDimensions), nil)

	assert.Equal(t, 64, l.Dimensions())
	v, err := l.Embed(context.Background(), "go developer")
	require.NoError(t, err)
	assert.Len(t, v, l.Dimensions())

	failed := NewLazy(func() (Embedder, error) {
		return nil, errors.New("no model")
	}, NewHashEmbedder(DefaultDimensions), nil)
	assert.Equal(t, DefaultDimensions, failed.Dimensions())
}

func TestLazy_UsesLoadedBackend(t *testing.T) {
	l := NewLazy(func() (Embedder, error) {
		return Disabled{}, nil
	}, NewHashEmbedder(DefaultDimensions), nil)

	_, err := l.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, l.Close())
}
