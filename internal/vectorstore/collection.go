package vectorstore

import (
	"context"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("promptd.vectorstore.chromem")

// Config holds configuration for the chromem-go backed collection.
type Config struct {
	// Path is the directory for persistent storage. The config layer
	// expands ~ before it gets here.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// ProviderName identifies the embedding provider, e.g.
	// "fastembed/BAAI/bge-small-en-v1.5". Together with Dimension it
	// determines the collection name.
	ProviderName string

	// Dimension is the embedding dimension the provider produces.
	Dimension int

	// InsertBatchSize caps chunks per insert batch.
	// Default: 100
	InsertBatchSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.InsertBatchSize == 0 {
		c.InsertBatchSize = 100
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if c.ProviderName == "" {
		return fmt.Errorf("%w: provider name is required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if c.InsertBatchSize < 0 {
		return fmt.Errorf("%w: insert batch size cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Collection wraps one chromem-go collection holding the prompt chunks
// of a single embedding provider.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, persistence to gob files,
// exact cosine similarity search. Mutations are serialized behind an
// internal lock; queries run concurrently.
type Collection struct {
	mu       sync.RWMutex
	db       *chromem.DB
	col      *chromem.Collection
	embedder Embedder
	config   Config
	name     string
	logger   *zap.Logger
}

// Open creates or reopens the persistent collection for the given
// provider. Opening is idempotent: an existing collection on disk is
// picked up as-is.
func Open(config Config, embedder Embedder, logger *zap.Logger) (*Collection, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
	}

	db, err := chromem.NewPersistentDB(config.Path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrVectorStore, err)
	}

	c := &Collection{
		db:       db,
		embedder: embedder,
		config:   config,
		name:     CollectionName(config.ProviderName, config.Dimension),
		logger:   logger,
	}

	col, err := c.createCollection()
	if err != nil {
		return nil, err
	}
	c.col = col

	logger.Info("vector collection ready",
		zap.String("path", config.Path),
		zap.String("collection", c.name),
		zap.Int("dimension", config.Dimension),
		zap.Int("chunks", col.Count()),
	)

	return c, nil
}

// createCollection gets or creates the chromem collection with the
// embedding function bridged to the provider.
func (c *Collection) createCollection() (*chromem.Collection, error) {
	meta := map[string]string{
		"provider":  c.config.ProviderName,
		"dimension": fmt.Sprintf("%d", c.config.Dimension),
	}
	col, err := c.db.GetOrCreateCollection(c.name, meta, c.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("%w: getting/creating collection %s: %v", ErrVectorStore, c.name, err)
	}
	return col, nil
}

// embeddingFunc bridges the Embedder interface to chromem's callback.
// chromem only calls it for query texts; chunk embeddings are computed
// in batch before insertion.
func (c *Collection) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return c.embedder.EmbedQuery(ctx, text)
	}
}

// Name returns the provider-scoped collection name.
func (c *Collection) Name() string {
	return c.name
}

// Count returns the number of stored chunks.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.col.Count()
}

// Reset drops and recreates the collection. Without force it only acts
// on an empty collection; a populated one is left alone so that an
// accidental reindex cannot wipe data that a forced full rebuild would
// not immediately replace.
func (c *Collection) Reset(ctx context.Context, force bool) error {
	_, span := tracer.Start(ctx, "Collection.Reset")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", c.name),
		attribute.Bool("force", force),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.col.Count()
	if !force && count > 0 {
		span.SetAttributes(attribute.Bool("skipped", true))
		span.SetStatus(codes.Ok, "skipped")
		c.logger.Debug("reset skipped, collection populated and not forced",
			zap.String("collection", c.name),
			zap.Int("chunks", count),
		)
		return nil
	}

	if err := c.db.DeleteCollection(c.name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting collection %s: %v", ErrVectorStore, c.name, err)
	}

	col, err := c.createCollection()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	c.col = col

	span.SetStatus(codes.Ok, "success")
	c.logger.Info("vector collection reset",
		zap.String("collection", c.name),
		zap.Int("previous_chunks", count),
	)
	return nil
}

// Add embeds and inserts chunk records in batches. Chunks carrying an
// ID that already exists replace the stored chunk.
func (c *Collection) Add(ctx context.Context, records []ChunkRecord) error {
	ctx, span := tracer.Start(ctx, "Collection.Add")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", c.name),
		attribute.Int("chunk_count", len(records)),
	)

	if len(records) == 0 {
		return ErrEmptyChunks
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for start := 0; start < len(records); start += c.config.InsertBatchSize {
		end := min(start+c.config.InsertBatchSize, len(records))
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Text
		}

		embeddings, err := c.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		if len(embeddings) != len(batch) {
			err := fmt.Errorf("%w: got %d embeddings for %d chunks", ErrEmbeddingFailed, len(embeddings), len(batch))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		docs := make([]chromem.Document, len(batch))
		for i, rec := range batch {
			if len(embeddings[i]) != c.config.Dimension {
				err := fmt.Errorf("%w: provider returned %d-dimensional vector, collection expects %d",
					ErrEmbeddingFailed, len(embeddings[i]), c.config.Dimension)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			docs[i] = chromem.Document{
				ID:        rec.ID,
				Content:   rec.Text,
				Metadata:  rec.Metadata.toMap(),
				Embedding: embeddings[i],
			}
		}

		// Concurrency of 1: embeddings are already computed, chromem
		// only stores.
		if err := c.col.AddDocuments(ctx, docs, 1); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: adding chunks: %v", ErrVectorStore, err)
		}
	}

	span.SetAttributes(attribute.Int("chunks_added", len(records)))
	span.SetStatus(codes.Ok, "success")

	c.logger.Debug("added chunks to vector collection",
		zap.String("collection", c.name),
		zap.Int("count", len(records)),
	)

	return nil
}

// Query performs similarity search. A non-empty category narrows
// results to that category; it is the only supported filter. Results
// come back ascending by distance, at most k of them, and an empty
// collection yields an empty slice rather than an error.
func (c *Collection) Query(ctx context.Context, text string, k int, category string) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Collection.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", c.name),
		attribute.Int("k", k),
		attribute.String("category", category),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if text == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	// chromem requires nResults <= document count.
	docCount := c.col.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	var where map[string]string
	if category != "" {
		where = map[string]string{"category": category}
	}

	results, err := c.col.Query(ctx, text, k, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying collection %s: %v", ErrVectorStore, c.name, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			ID:       r.ID,
			Text:     r.Content,
			Metadata: metadataFromMap(r.Metadata),
			Distance: 1 - r.Similarity,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")

	c.logger.Debug("queried vector collection",
		zap.String("collection", c.name),
		zap.Int("k", k),
		zap.Int("results", len(searchResults)),
	)

	return searchResults, nil
}

// DeleteByStem removes every chunk whose source document has the given
// file stem. Deleting a stem with no stored chunks is a no-op.
func (c *Collection) DeleteByStem(ctx context.Context, stem string) error {
	ctx, span := tracer.Start(ctx, "Collection.DeleteByStem")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", c.name),
		attribute.String("stem", stem),
	)

	if stem == "" {
		return fmt.Errorf("stem cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.col.Count() == 0 {
		span.SetStatus(codes.Ok, "empty collection")
		return nil
	}

	if err := c.col.Delete(ctx, map[string]string{"stem": stem}, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting chunks for %s: %v", ErrVectorStore, stem, err)
	}

	span.SetStatus(codes.Ok, "success")

	c.logger.Debug("deleted chunks by stem",
		zap.String("collection", c.name),
		zap.String("stem", stem),
	)

	return nil
}

// Close closes the collection. chromem-go persists on every write, so
// there is nothing to flush.
func (c *Collection) Close() error {
	c.logger.Debug("vector collection closed", zap.String("collection", c.name))
	return nil
}
