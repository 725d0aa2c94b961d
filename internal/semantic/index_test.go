package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgate/memgate/internal/embedding"
	"github.com/memgate/memgate/internal/model"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewIndex(embedding.NewDeterministic(0), 16, nil)
	require.NoError(t, err)
	return ix
}

func pool() []model.Memory {
	return []model.Memory{
		{ID: "m_trip", Title: "Normandy beaches trip", Type: model.TypeEpisodic, Branch: "Travel",
			Content: map[string]any{"summary": "visited normandy beaches"}},
		{ID: "m_infra", Title: "Cluster deploy runbook", Type: model.TypeProcedural, Branch: "Work",
			Content: map[string]any{"steps": []any{"drain nodes", "roll pods"}}},
	}
}

func TestScoreOrdersByRelatedness(t *testing.T) {
	ix := newTestIndex(t)

	scores, err := ix.Score(context.Background(), "normandy beaches", pool())
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Greater(t, scores[0], scores[1], "trip memory shares tokens with the query")
}

func TestScoreNilEmbedderRejected(t *testing.T) {
	_, err := NewIndex(nil, 0, nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestScoreEmptyPool(t *testing.T) {
	ix := newTestIndex(t)

	scores, err := ix.Score(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestScoreReembedsChangedMemory(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	memories := pool()
	_, err := ix.Score(ctx, "normandy", memories)
	require.NoError(t, err)

	// Rewriting a memory's text must change where it lands.
	memories[0].Title = "Kubernetes cluster maintenance"
	memories[0].Content = map[string]any{"summary": "drain nodes, roll pods"}

	scores, err := ix.Score(ctx, "drain nodes", memories)
	require.NoError(t, err)
	assert.Greater(t, scores[0], 0.0, "re-embedded memory must match its new text")
}

func TestScoreNarrowedPool(t *testing.T) {
	ctx := context.Background()
	memories := []model.Memory{
		{ID: "m_trip", Title: "Normandy beaches trip", Type: model.TypeEpisodic, Branch: "Travel",
			Content: map[string]any{"summary": "visited normandy beaches"}},
		{ID: "m_weather", Title: "Normandy beaches weather", Type: model.TypeSemantic, Branch: "Travel",
			Content: map[string]any{"note": "normandy beaches get windy"}},
	}

	// Baseline: the second memory scored alone in a fresh index.
	fresh := newTestIndex(t)
	baseline, err := fresh.Score(ctx, "normandy beaches trip", memories[1:])
	require.NoError(t, err)
	require.Len(t, baseline, 1)
	require.Greater(t, baseline[0], 0.0)

	// Same memory scored after the index has seen a stronger match for the
	// query. Narrowing the pool must not push its score to zero.
	ix := newTestIndex(t)
	_, err = ix.Score(ctx, "normandy beaches trip", memories)
	require.NoError(t, err)

	scores, err := ix.Score(ctx, "normandy beaches trip", memories[1:])
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.InDelta(t, baseline[0], scores[0], 1e-6,
		"a pooled memory's similarity must not depend on what else is indexed")
}

func TestScoreRepeatedQueryStable(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	first, err := ix.Score(ctx, "normandy beaches", pool())
	require.NoError(t, err)
	// Second call hits the query-embedding cache.
	second, err := ix.Score(ctx, "normandy beaches", pool())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
