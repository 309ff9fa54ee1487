package vectorstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/fyrsmithlabs/promptd/internal/sanitize"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyChunks indicates empty or nil chunk records.
	ErrEmptyChunks = errors.New("empty or nil chunks")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrVectorStore wraps chromem failures. The library layer treats it
	// as degradation, not as a reason to abort filesystem work.
	ErrVectorStore = errors.New("vector store operation failed")
)

// Document types stored in chunk metadata. Manually created documents
// are "prompt"; documents harvested from a session export are "session".
const (
	DocTypePrompt  = "prompt"
	DocTypeSession = "session"
)

// maxMetadataValueLen caps stored metadata values. Keyword lists and
// summaries can run long; truncation keeps the persisted gob files
// bounded without touching chunk content.
const maxMetadataValueLen = 500

// Embedder generates vector embeddings from text.
//
// Embeddings are dense numerical representations that capture semantic
// meaning, enabling similarity search. Implementations can run a local
// model (FastEmbed) or call a remote API (LM Studio).
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns a slice of embeddings (one per input text) or an error.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkMetadata is the per-chunk payload stored alongside each vector.
// It carries enough to render a search hit and to locate the source
// document without reading the filesystem.
type ChunkMetadata struct {
	// FileName is the base name of the source document. Together with
	// Category it locates the file under the prompts directory.
	FileName string

	// Stem is the source file name without extension. Deletion by
	// document filters on it.
	Stem string

	// Category is the library category the document lives in.
	Category string

	// DocType distinguishes manually created documents from ones
	// harvested out of a session export.
	DocType string

	// Keywords is the comma-joined keyword list of the document.
	Keywords string

	// SessionID links session-derived documents to their transcript.
	SessionID string

	// ChunkIndex is this chunk's position within the document.
	ChunkIndex int

	// TotalChunks is the document's chunk count at index time.
	TotalChunks int
}

// toMap converts the metadata to chromem's string map form, truncating
// long values.
func (m ChunkMetadata) toMap() map[string]string {
	meta := map[string]string{
		"file_name":    truncateValue(m.FileName),
		"stem":         truncateValue(m.Stem),
		"category":     truncateValue(m.Category),
		"doc_type":     truncateValue(m.DocType),
		"keywords":     truncateValue(m.Keywords),
		"session_id":   truncateValue(m.SessionID),
		"chunk_index":  strconv.Itoa(m.ChunkIndex),
		"total_chunks": strconv.Itoa(m.TotalChunks),
	}
	return meta
}

// metadataFromMap is the inverse of toMap. Unparseable counters come
// back as zero.
func metadataFromMap(meta map[string]string) ChunkMetadata {
	chunkIndex, _ := strconv.Atoi(meta["chunk_index"])
	totalChunks, _ := strconv.Atoi(meta["total_chunks"])
	return ChunkMetadata{
		FileName:    meta["file_name"],
		Stem:        meta["stem"],
		Category:    meta["category"],
		DocType:     meta["doc_type"],
		Keywords:    meta["keywords"],
		SessionID:   meta["session_id"],
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
	}
}

func truncateValue(s string) string {
	if len(s) > maxMetadataValueLen {
		return s[:maxMetadataValueLen]
	}
	return s
}

// ChunkRecord is one chunk ready for insertion.
type ChunkRecord struct {
	// ID is the unique chunk identifier, normally chunk.ID(stem, index).
	ID string

	// Text is the chunk content that gets embedded and stored.
	Text string

	// Metadata is the chunk payload.
	Metadata ChunkMetadata
}

// SearchResult is one similarity hit.
type SearchResult struct {
	// ID is the chunk identifier.
	ID string

	// Text is the stored chunk content.
	Text string

	// Metadata is the chunk payload.
	Metadata ChunkMetadata

	// Distance is 1 - cosine similarity; smaller is closer. Results
	// from Query arrive in ascending distance order.
	Distance float32
}

// CollectionName derives the collection identifier for an embedding
// provider. Pure and deterministic: the same provider and dimension
// always map to the same collection, and two providers with
// incompatible vector spaces never collide.
func CollectionName(providerName string, dimension int) string {
	return "prompts_" + sanitize.Identifier(providerName) + "_" + strconv.Itoa(dimension) + "d"
}
