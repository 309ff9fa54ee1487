package vectorstore_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptd/internal/chunk"
	"github.com/fyrsmithlabs/promptd/internal/vectorstore"
)

// stubEmbedder maps known texts to fixed unit vectors so tests control
// similarity ordering exactly.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (e *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := e.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no stub vector for %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no stub vector for %q", text)
	}
	return vec, nil
}

func newTestCollection(t *testing.T, path string, embedder vectorstore.Embedder) *vectorstore.Collection {
	t.Helper()

	col, err := vectorstore.Open(vectorstore.Config{
		Path:         path,
		ProviderName: "fastembed/test-model",
		Dimension:    4,
	}, embedder, zap.NewNop())
	require.NoError(t, err)

	return col
}

func promptRecord(stem, category, text string, index, total int) vectorstore.ChunkRecord {
	return vectorstore.ChunkRecord{
		ID:   chunk.ID(stem, index),
		Text: text,
		Metadata: vectorstore.ChunkMetadata{
			FileName:    category + "/" + stem + ".md",
			Stem:        stem,
			Category:    category,
			DocType:     vectorstore.DocTypePrompt,
			ChunkIndex:  index,
			TotalChunks: total,
		},
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	config := vectorstore.Config{}
	config.ApplyDefaults()

	assert.Equal(t, 100, config.InsertBatchSize)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    vectorstore.Config
		wantError bool
	}{
		{
			name: "valid config",
			config: vectorstore.Config{
				Path:            "/tmp/test",
				ProviderName:    "fastembed/test",
				Dimension:       384,
				InsertBatchSize: 100,
			},
		},
		{
			name: "missing path",
			config: vectorstore.Config{
				ProviderName:    "fastembed/test",
				Dimension:       384,
				InsertBatchSize: 100,
			},
			wantError: true,
		},
		{
			name: "missing provider name",
			config: vectorstore.Config{
				Path:            "/tmp/test",
				Dimension:       384,
				InsertBatchSize: 100,
			},
			wantError: true,
		},
		{
			name: "zero dimension",
			config: vectorstore.Config{
				Path:            "/tmp/test",
				ProviderName:    "fastembed/test",
				InsertBatchSize: 100,
			},
			wantError: true,
		},
		{
			name: "negative batch size",
			config: vectorstore.Config{
				Path:            "/tmp/test",
				ProviderName:    "fastembed/test",
				Dimension:       384,
				InsertBatchSize: -1,
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCollectionName(t *testing.T) {
	name := vectorstore.CollectionName("fastembed/BAAI/bge-small-en-v1.5", 384)
	assert.Equal(t, "prompts_fastembed_baai_bge_small_en_v1_5_384d", name)

	// Deterministic.
	assert.Equal(t, name, vectorstore.CollectionName("fastembed/BAAI/bge-small-en-v1.5", 384))

	// Dimension and provider both separate collections.
	assert.NotEqual(t, name, vectorstore.CollectionName("fastembed/BAAI/bge-small-en-v1.5", 768))
	assert.NotEqual(t, name, vectorstore.CollectionName("lmstudio/nomic-embed-text", 384))
}

func TestOpen_Invalid(t *testing.T) {
	embedder := &stubEmbedder{}

	_, err := vectorstore.Open(vectorstore.Config{Path: t.TempDir(), ProviderName: "p", Dimension: 4}, nil, zap.NewNop())
	require.ErrorIs(t, err, vectorstore.ErrInvalidConfig)

	_, err = vectorstore.Open(vectorstore.Config{ProviderName: "p", Dimension: 4}, embedder, zap.NewNop())
	require.ErrorIs(t, err, vectorstore.ErrInvalidConfig)

	_, err = vectorstore.Open(vectorstore.Config{Path: t.TempDir(), ProviderName: "p"}, embedder, zap.NewNop())
	require.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestCollection_AddAndQuery(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"retry with exponential backoff": {1, 0, 0, 0},
		"retry on transient errors":      {0.8, 0.6, 0, 0},
		"render the settings page":       {0, 0, 1, 0},
		"retry":                          {1, 0, 0, 0},
	}}

	col := newTestCollection(t, t.TempDir(), embedder)
	defer col.Close()

	// Empty collection returns no results instead of an error.
	results, err := col.Query(context.Background(), "retry", 5, "")
	require.NoError(t, err)
	assert.Empty(t, results)

	records := []vectorstore.ChunkRecord{
		promptRecord("backoff", "debugging", "retry with exponential backoff", 0, 1),
		promptRecord("transient", "debugging", "retry on transient errors", 0, 1),
		promptRecord("settings", "implementation", "render the settings page", 0, 1),
	}
	require.NoError(t, col.Add(context.Background(), records))
	assert.Equal(t, 3, col.Count())

	// k larger than the collection is capped, and results come back
	// ascending by distance.
	results, err = col.Query(context.Background(), "retry", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "backoff", results[0].Metadata.Stem)
	assert.InDelta(t, 0.0, results[0].Distance, 0.01)
	assert.Equal(t, "transient", results[1].Metadata.Stem)
	assert.InDelta(t, 0.2, results[1].Distance, 0.01)
	assert.Equal(t, "settings", results[2].Metadata.Stem)
	assert.LessOrEqual(t, results[1].Distance, results[2].Distance)

	// Metadata survives the round trip.
	top := results[0]
	assert.Equal(t, "debugging/backoff.md", top.Metadata.FileName)
	assert.Equal(t, "debugging", top.Metadata.Category)
	assert.Equal(t, vectorstore.DocTypePrompt, top.Metadata.DocType)
	assert.Equal(t, 0, top.Metadata.ChunkIndex)
	assert.Equal(t, 1, top.Metadata.TotalChunks)

	// Category filter narrows the result set.
	results, err = col.Query(context.Background(), "retry", 5, "implementation")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "settings", results[0].Metadata.Stem)

	// Input validation.
	_, err = col.Query(context.Background(), "", 5, "")
	require.Error(t, err)
	_, err = col.Query(context.Background(), "retry", 0, "")
	require.Error(t, err)
}

func TestCollection_AddValidation(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"wrong size": {1, 0},
	}}

	col := newTestCollection(t, t.TempDir(), embedder)
	defer col.Close()

	err := col.Add(context.Background(), nil)
	require.ErrorIs(t, err, vectorstore.ErrEmptyChunks)

	// An embedder whose output does not match the declared dimension is
	// rejected before anything is stored.
	err = col.Add(context.Background(), []vectorstore.ChunkRecord{
		promptRecord("bad", "general", "wrong size", 0, 1),
	})
	require.ErrorIs(t, err, vectorstore.ErrEmbeddingFailed)
	assert.Equal(t, 0, col.Count())
}

func TestCollection_MetadataTruncation(t *testing.T) {
	text := "truncate me"
	embedder := &stubEmbedder{vectors: map[string][]float32{
		text: {1, 0, 0, 0},
	}}

	col := newTestCollection(t, t.TempDir(), embedder)
	defer col.Close()

	rec := promptRecord("long", "general", text, 0, 1)
	rec.Metadata.Keywords = strings.Repeat("k", 600)
	require.NoError(t, col.Add(context.Background(), []vectorstore.ChunkRecord{rec}))

	results, err := col.Query(context.Background(), text, 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Metadata.Keywords, 500)
}

func TestCollection_DeleteByStem(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"design the api":     {1, 0, 0, 0},
		"version the api":    {0, 1, 0, 0},
		"unit test handlers": {0, 0, 1, 0},
		"mock the clock":     {0, 0, 0, 1},
	}}

	col := newTestCollection(t, t.TempDir(), embedder)
	defer col.Close()

	records := []vectorstore.ChunkRecord{
		promptRecord("api-design", "implementation", "design the api", 0, 2),
		promptRecord("api-design", "implementation", "version the api", 1, 2),
		promptRecord("testing-tips", "testing", "unit test handlers", 0, 2),
		promptRecord("testing-tips", "testing", "mock the clock", 1, 2),
	}
	require.NoError(t, col.Add(context.Background(), records))
	require.Equal(t, 4, col.Count())

	require.NoError(t, col.DeleteByStem(context.Background(), "api-design"))
	assert.Equal(t, 2, col.Count())

	results, err := col.Query(context.Background(), "unit test handlers", 2, "")
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "testing-tips", r.Metadata.Stem)
	}

	// Unknown stems are a no-op.
	require.NoError(t, col.DeleteByStem(context.Background(), "never-indexed"))
	assert.Equal(t, 2, col.Count())

	require.Error(t, col.DeleteByStem(context.Background(), ""))
}

func TestCollection_Reset(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"first":  {1, 0, 0, 0},
		"second": {0, 1, 0, 0},
	}}

	col := newTestCollection(t, t.TempDir(), embedder)
	defer col.Close()

	records := []vectorstore.ChunkRecord{
		promptRecord("one", "general", "first", 0, 1),
		promptRecord("two", "general", "second", 0, 1),
	}
	require.NoError(t, col.Add(context.Background(), records))

	// Unforced reset leaves a populated collection alone.
	require.NoError(t, col.Reset(context.Background(), false))
	assert.Equal(t, 2, col.Count())

	// Forced reset drops everything and the collection stays usable.
	require.NoError(t, col.Reset(context.Background(), true))
	assert.Equal(t, 0, col.Count())

	require.NoError(t, col.Add(context.Background(), records))
	assert.Equal(t, 2, col.Count())
}

func TestCollection_Persistence(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"persisted chunk": {1, 0, 0, 0},
	}}

	dir := t.TempDir()

	col := newTestCollection(t, dir, embedder)
	require.NoError(t, col.Add(context.Background(), []vectorstore.ChunkRecord{
		promptRecord("keeper", "general", "persisted chunk", 0, 1),
	}))
	require.NoError(t, col.Close())

	reopened := newTestCollection(t, dir, embedder)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Count())

	results, err := reopened.Query(context.Background(), "persisted chunk", 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keeper", results[0].Metadata.Stem)
}

func TestCollection_ReplacesChunksOnReAdd(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"old wording": {1, 0, 0, 0},
		"new wording": {0, 1, 0, 0},
	}}

	col := newTestCollection(t, t.TempDir(), embedder)
	defer col.Close()

	require.NoError(t, col.Add(context.Background(), []vectorstore.ChunkRecord{
		promptRecord("doc", "general", "old wording", 0, 1),
	}))
	require.NoError(t, col.Add(context.Background(), []vectorstore.ChunkRecord{
		promptRecord("doc", "general", "new wording", 0, 1),
	}))

	// Same stem and index produce the same ID, so the chunk is
	// replaced rather than duplicated.
	assert.Equal(t, 1, col.Count())

	results, err := col.Query(context.Background(), "new wording", 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new wording", results[0].Text)
}
