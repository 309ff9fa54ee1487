package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptd/internal/chunk"
	"github.com/fyrsmithlabs/promptd/internal/prompt"
	"github.com/fyrsmithlabs/promptd/internal/vectorstore"
)

// ReindexResult reports what a reindex run did.
type ReindexResult struct {
	Files   int
	Chunks  int
	Skipped bool
}

// Reindex rebuilds the vector collection from the files on disk. Without
// force, a collection that already holds chunks is left alone. The
// rebuild wipes the collection first, so a failure partway leaves it
// incomplete until the next run or drift repair.
func (l *Library) Reindex(ctx context.Context, force bool) (ReindexResult, error) {
	return l.ReindexWithProgress(ctx, force, nil)
}

// ReindexWithProgress is Reindex with a per-file callback for
// interactive callers. progress may be nil; it receives the number of
// files handled so far and the total, starting with (0, total).
func (l *Library) ReindexWithProgress(ctx context.Context, force bool, progress func(done, total int)) (ReindexResult, error) {
	ctx, span := tracer.Start(ctx, "library.reindex")
	defer span.End()
	span.SetAttributes(attribute.Bool("reindex.force", force))

	if l.collection == nil {
		return ReindexResult{}, ErrIndexingDisabled
	}
	if !force && l.collection.Count() > 0 {
		l.logger.Debug("collection already populated, skipping reindex",
			zap.Int("chunks", l.collection.Count()))
		span.SetStatus(codes.Ok, "skipped")
		return ReindexResult{Skipped: true}, nil
	}

	if err := l.collection.Reset(ctx, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reset failed")
		return ReindexResult{}, err
	}

	files, err := l.promptFiles()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "walk failed")
		return ReindexResult{}, err
	}

	if progress != nil {
		progress(0, len(files))
	}

	var result ReindexResult
	for i, rel := range files {
		raw, err := os.ReadFile(filepath.Join(l.promptsDir, rel))
		if err != nil {
			// A file removed mid-walk is drift, not a reason to abort.
			l.logger.Warn("skipping unreadable document",
				zap.String("path", rel),
				zap.Error(err))
			if progress != nil {
				progress(i+1, len(files))
			}
			continue
		}
		content := string(raw)
		doc := prompt.Parse(content)
		if dir := filepath.Dir(rel); dir != "." {
			doc.Category = dir
		} else if doc.Category == "" {
			doc.Category = prompt.DefaultCategory
		}

		records := l.chunkRecords(rel, prompt.Stem(rel), content, doc)
		if err := l.collection.Add(ctx, records); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "add failed")
			return result, fmt.Errorf("indexing %s: %w", rel, err)
		}
		result.Files++
		result.Chunks += len(records)
		if progress != nil {
			progress(i+1, len(files))
		}
	}

	l.logger.Info("reindex complete",
		zap.Int("files", result.Files),
		zap.Int("chunks", result.Chunks),
		zap.String("collection", l.collection.Name()))
	span.SetAttributes(
		attribute.Int("reindex.files", result.Files),
		attribute.Int("reindex.chunks", result.Chunks),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// indexDocument chunks rendered content and inserts it into the vector
// collection. Failures are logged: the caller's filesystem work already
// succeeded, and a later reindex repairs the gap.
func (l *Library) indexDocument(ctx context.Context, relPath, content string, doc prompt.Document) {
	if l.collection == nil {
		return
	}
	records := l.chunkRecords(relPath, prompt.Stem(relPath), content, doc)
	if err := l.collection.Add(ctx, records); err != nil {
		l.logger.Warn("vector indexing failed, document remains searchable after next reindex",
			zap.String("path", relPath),
			zap.Error(err))
		return
	}
	l.logger.Debug("document indexed",
		zap.String("path", relPath),
		zap.Int("chunks", len(records)))
}

func (l *Library) chunkRecords(relPath, stem, content string, doc prompt.Document) []vectorstore.ChunkRecord {
	chunks := l.chunker.Split(content)

	docType := vectorstore.DocTypePrompt
	if doc.Source == prompt.SourceSession {
		docType = vectorstore.DocTypeSession
	}

	records := make([]vectorstore.ChunkRecord, len(chunks))
	for i, text := range chunks {
		records[i] = vectorstore.ChunkRecord{
			ID:   chunk.ID(stem, i),
			Text: text,
			Metadata: vectorstore.ChunkMetadata{
				FileName:    filepath.Base(relPath),
				Stem:        stem,
				Category:    doc.Category,
				DocType:     docType,
				Keywords:    strings.Join(doc.Keywords, ", "),
				SessionID:   doc.SessionID,
				ChunkIndex:  i,
				TotalChunks: len(chunks),
			},
		}
	}
	return records
}

// promptFiles lists the indexable documents relative to the prompts dir:
// every *.md except the generated README.
func (l *Library) promptFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(l.promptsDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".md") || name == "README.md" {
			return nil
		}
		rel, err := filepath.Rel(l.promptsDir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking prompt library: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
