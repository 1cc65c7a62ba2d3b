package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gamespec-rag/internal/core/chunk"
)

type stubEmbedder struct{ called bool }

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.called = true
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubProvider struct {
	results []*SearchResult
	ready   bool
	lastK   int
}

func (p *stubProvider) QueryNearest(ctx context.Context, vector []float32, k int) ([]*SearchResult, error) {
	p.lastK = k
	return p.results, nil
}

func (p *stubProvider) Ready(ctx context.Context) (bool, error) {
	return p.ready, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{AddSource: false}))
}

func resultWithScore(score float64) *SearchResult {
	return &SearchResult{
		Chunk: chunk.Chunk{Content: "本文", Section: "## **1. 概要**", Source: "spec.md"},
		Score: score,
	}
}

func TestEngine_SearchFiltersByThreshold(t *testing.T) {
	provider := &stubProvider{
		ready: true,
		results: []*SearchResult{
			resultWithScore(0.9),
			resultWithScore(0.6),
			resultWithScore(0.3),
			resultWithScore(0.1),
		},
	}
	embedder := &stubEmbedder{}
	engine := NewEngine(provider, embedder, 0.5, WithEngineLogger(discardLogger()))

	results, err := engine.Search(context.Background(), "戦闘システムについて", 4)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, 0.6, results[1].Score)
	assert.True(t, embedder.called)
	assert.Equal(t, 4, provider.lastK)
}

func TestEngine_SearchSortsProviderResults(t *testing.T) {
	provider := &stubProvider{
		ready: true,
		results: []*SearchResult{
			resultWithScore(0.6),
			resultWithScore(0.9),
			resultWithScore(0.7),
		},
	}
	engine := NewEngine(provider, &stubEmbedder{}, 0.0, WithEngineLogger(discardLogger()))

	results, err := engine.Search(context.Background(), "質問", 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, 0.7, results[1].Score)
	assert.Equal(t, 0.6, results[2].Score)
}

func TestEngine_SearchAppliesDefaultMaxResults(t *testing.T) {
	provider := &stubProvider{ready: true}
	engine := NewEngine(provider, &stubEmbedder{}, 0.5, WithEngineLogger(discardLogger()))

	results, err := engine.Search(context.Background(), "質問", 0)
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.Equal(t, 3, provider.lastK)
}

func TestEngine_SearchReturnsEmptySliceWhenNothingPasses(t *testing.T) {
	provider := &stubProvider{
		ready:   true,
		results: []*SearchResult{resultWithScore(0.2)},
	}
	engine := NewEngine(provider, &stubEmbedder{}, 0.5, WithEngineLogger(discardLogger()))

	results, err := engine.Search(context.Background(), "質問", 3)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestEngine_SearchFailsWhenIndexNotReady(t *testing.T) {
	provider := &stubProvider{ready: false}
	engine := NewEngine(provider, &stubEmbedder{}, 0.5, WithEngineLogger(discardLogger()))

	_, err := engine.Search(context.Background(), "質問", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexNotReady))
}

func TestEngine_SearchRequiresQuery(t *testing.T) {
	engine := NewEngine(&stubProvider{ready: true}, &stubEmbedder{}, 0.5, WithEngineLogger(discardLogger()))

	_, err := engine.Search(context.Background(), "", 3)
	require.Error(t, err)
}
