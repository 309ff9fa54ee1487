// Package vectorstore persists prompt chunks in an embedded chromem-go
// database and answers similarity queries over them.
//
// The store holds one collection per embedding provider, named
// CollectionName(provider, dimension), so vectors produced by
// incompatible models never share a search space. Switching providers
// switches collections; the old one stays on disk until a forced
// reset removes it.
//
// The vector data is a cache, not a source of truth. The markdown
// files under the prompts directory remain authoritative, and a full
// reindex rebuilds the collection from them at any time. Callers are
// expected to treat write failures here as degradation rather than
// hard errors.
//
// # Usage
//
//	col, err := vectorstore.Open(vectorstore.Config{
//	    Path:         cfg.Library.VectorDBDir,
//	    ProviderName: provider.Name(),
//	    Dimension:    provider.Dimension(),
//	}, provider, logger)
//	if err != nil {
//	    return err
//	}
//	defer col.Close()
//
//	err = col.Add(ctx, records)
//	results, err := col.Query(ctx, "retry with backoff", 5, "debugging")
//
// Chunk IDs are deterministic (chunk.ID over file stem and chunk
// index), so re-adding a document overwrites its previous chunks
// instead of duplicating them.
package vectorstore
