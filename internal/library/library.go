package library

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptd/internal/catalog"
	"github.com/fyrsmithlabs/promptd/internal/chunk"
	"github.com/fyrsmithlabs/promptd/internal/config"
	"github.com/fyrsmithlabs/promptd/internal/prompt"
	"github.com/fyrsmithlabs/promptd/internal/sanitize"
	"github.com/fyrsmithlabs/promptd/internal/session"
	"github.com/fyrsmithlabs/promptd/internal/vectorstore"
)

var tracer = otel.Tracer("promptd.library")

var (
	// ErrNotFound carries its remediation hint because the message
	// travels to MCP clients verbatim.
	ErrNotFound = errors.New("prompt not found; use search_prompts or list_prompts_by_category to find the correct path")

	// ErrInvalidCategory rejects category arguments outside the fixed
	// taxonomy.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrIndexingDisabled is returned by semantic operations when the
	// library runs without a vector collection.
	ErrIndexingDisabled = errors.New("semantic indexing is disabled")
)

const defaultSearchLimit = 5

// Library coordinates prompt files, the vector collection, and the JSON
// catalog. The collection may be nil when semantic indexing is disabled;
// file and catalog operations keep working.
type Library struct {
	promptsDir  string
	sessionsDir string
	collection  *vectorstore.Collection
	catalog     *catalog.Catalog
	chunker     *chunk.Engine
	organizer   *session.Organizer
	drift       *DriftMonitor
	logger      *zap.Logger
}

// New builds the coordinator and creates the on-disk layout: the prompts
// dir with one subdirectory per category, plus the sessions dir.
func New(cfg *config.Config, collection *vectorstore.Collection, cat *catalog.Catalog, logger *zap.Logger) (*Library, error) {
	if cat == nil {
		return nil, errors.New("library requires a catalog")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Library{
		promptsDir:  cfg.Library.PromptsDir,
		sessionsDir: cfg.Library.SessionsDir,
		collection:  collection,
		catalog:     cat,
		chunker:     chunk.NewEngine(cfg.Chunking.Size, cfg.Chunking.Overlap),
		organizer:   session.NewOrganizer(cfg.Library.PromptsDir, logger),
		logger:      logger,
	}
	l.drift = NewDriftMonitor(l, cfg.RAG.ReindexInterval)

	if err := l.ensureLayout(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Library) ensureLayout() error {
	dirs := []string{l.promptsDir}
	for _, category := range prompt.Categories {
		dirs = append(dirs, filepath.Join(l.promptsDir, category))
	}
	if l.sessionsDir != "" {
		dirs = append(dirs, l.sessionsDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating library directory: %w", err)
		}
	}
	return nil
}

// Descriptor identifies a stored prompt document.
type Descriptor struct {
	RelPath  string
	Category string
	Title    string
	Keywords []string
	Source   string
}

// CreateRequest carries the fields for a new prompt. Content is
// required; everything else is derived when absent.
type CreateRequest struct {
	Content  string
	Category string
	Title    string
	Keywords []string
	Source   string
}

// Create writes a new prompt document and indexes it. The file write is
// authoritative: once it succeeds, vector and catalog failures only
// degrade search and are logged, not returned.
func (l *Library) Create(ctx context.Context, req CreateRequest) (Descriptor, error) {
	ctx, span := tracer.Start(ctx, "library.create")
	defer span.End()

	if strings.TrimSpace(req.Content) == "" {
		return Descriptor{}, errors.New("prompt content must not be empty")
	}

	// Classification only stands in for an absent category; an invalid
	// one falls back to the default.
	category := req.Category
	switch {
	case category == "":
		category = prompt.Classify(req.Content)
	case !prompt.ValidCategory(category):
		l.logger.Warn("unknown category, using default",
			zap.String("requested", category),
			zap.String("category", prompt.DefaultCategory))
		category = prompt.DefaultCategory
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = prompt.Title(req.Content)
	}
	source := req.Source
	if source == "" {
		source = prompt.SourceManual
	}

	doc := prompt.Document{
		Title:    title,
		Category: category,
		Date:     time.Now().Format(prompt.DateLayout),
		Keywords: req.Keywords,
		Source:   source,
		Body:     req.Content,
	}

	if err := os.MkdirAll(filepath.Join(l.promptsDir, category), 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create category dir failed")
		return Descriptor{}, fmt.Errorf("creating category directory: %w", err)
	}

	relPath := filepath.Join(category, prompt.Filename(req.Content, time.Now()))
	rendered := doc.Render()
	if err := os.WriteFile(filepath.Join(l.promptsDir, relPath), []byte(rendered), 0o644); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return Descriptor{}, fmt.Errorf("writing prompt file: %w", err)
	}

	l.indexDocument(ctx, relPath, rendered, doc)
	if err := l.catalog.AddDocument(relPath, category, doc.Keywords); err != nil {
		l.logger.Warn("catalog update failed",
			zap.String("path", relPath),
			zap.Error(err))
	}

	l.logger.Info("prompt created",
		zap.String("path", relPath),
		zap.String("category", category))
	span.SetAttributes(attribute.String("prompt.path", relPath))
	span.SetStatus(codes.Ok, "")
	return Descriptor{RelPath: relPath, Category: category, Title: title, Keywords: doc.Keywords, Source: source}, nil
}

// UpdateRequest carries partial changes: zero-value fields keep the
// stored value, and a nil Keywords slice keeps the stored keywords.
type UpdateRequest struct {
	Content  string
	Category string
	Title    string
	Keywords []string
}

// Update merges req into the stored document and rewrites it. A category
// change relocates the file into the new category directory; the move is
// delete-then-write, so a crash between the two steps loses the file
// until it is restored by hand. Catalog entries for the old path are
// left in place; only Delete removes them.
func (l *Library) Update(ctx context.Context, relPath string, req UpdateRequest) (Descriptor, error) {
	ctx, span := tracer.Start(ctx, "library.update")
	defer span.End()

	abs, err := sanitize.DocumentPath(l.promptsDir, relPath)
	if err != nil {
		return Descriptor{}, err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Descriptor{}, fmt.Errorf("%q: %w", relPath, ErrNotFound)
		}
		return Descriptor{}, fmt.Errorf("reading prompt file: %w", err)
	}
	doc := prompt.Parse(string(raw))

	if strings.TrimSpace(req.Content) != "" {
		doc.Body = req.Content
	}
	if strings.TrimSpace(req.Title) != "" {
		doc.Title = req.Title
	}
	if req.Keywords != nil {
		doc.Keywords = req.Keywords
	}
	if doc.Title == "" {
		doc.Title = prompt.DefaultTitle
	}

	currentDir := filepath.Dir(relPath)
	currentCategory := currentDir
	if !prompt.ValidCategory(currentCategory) {
		if prompt.ValidCategory(doc.Category) {
			currentCategory = doc.Category
		} else {
			currentCategory = prompt.DefaultCategory
		}
	}
	newCategory := currentCategory
	if req.Category != "" {
		if prompt.ValidCategory(req.Category) {
			newCategory = req.Category
		} else {
			l.logger.Warn("unknown category, keeping current",
				zap.String("requested", req.Category),
				zap.String("category", currentCategory))
		}
	}
	doc.Category = newCategory

	newRel := relPath
	rendered := doc.Render()
	if currentDir != newCategory {
		newRel = filepath.Join(newCategory, filepath.Base(relPath))
		if err := os.MkdirAll(filepath.Join(l.promptsDir, newCategory), 0o755); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "create category dir failed")
			return Descriptor{}, fmt.Errorf("creating category directory: %w", err)
		}
		if err := os.Remove(abs); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "remove failed")
			return Descriptor{}, fmt.Errorf("removing old prompt file: %w", err)
		}
		if err := os.WriteFile(filepath.Join(l.promptsDir, newRel), []byte(rendered), 0o644); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write failed")
			return Descriptor{}, fmt.Errorf("writing prompt file: %w", err)
		}
		l.logger.Info("prompt relocated",
			zap.String("from", relPath),
			zap.String("to", newRel))
	} else {
		if err := os.WriteFile(abs, []byte(rendered), 0o644); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write failed")
			return Descriptor{}, fmt.Errorf("writing prompt file: %w", err)
		}
	}

	if l.collection != nil {
		if err := l.collection.DeleteByStem(ctx, prompt.Stem(relPath)); err != nil {
			l.logger.Warn("stale chunk removal failed",
				zap.String("path", relPath),
				zap.Error(err))
		}
	}
	l.indexDocument(ctx, newRel, rendered, doc)
	if err := l.catalog.AddDocument(newRel, newCategory, doc.Keywords); err != nil {
		l.logger.Warn("catalog update failed",
			zap.String("path", newRel),
			zap.Error(err))
	}

	span.SetAttributes(attribute.String("prompt.path", newRel))
	span.SetStatus(codes.Ok, "")
	return Descriptor{RelPath: newRel, Category: newCategory, Title: doc.Title, Keywords: doc.Keywords, Source: doc.Source}, nil
}

// DeleteResult reports what Delete did (or would do when confirm is
// false).
type DeleteResult struct {
	Deleted  bool
	RelPath  string
	Title    string
	Category string
}

// Delete removes a prompt document. Without confirm it only returns a
// preview and mutates nothing. With confirm, vector and catalog cleanup
// run best-effort first; the file removal is the only step whose failure
// is returned.
func (l *Library) Delete(ctx context.Context, relPath string, confirm bool) (DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "library.delete")
	defer span.End()
	span.SetAttributes(attribute.Bool("delete.confirm", confirm))

	abs, err := sanitize.DocumentPath(l.promptsDir, relPath)
	if err != nil {
		return DeleteResult{}, err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return DeleteResult{}, fmt.Errorf("%q: %w", relPath, ErrNotFound)
		}
		return DeleteResult{}, fmt.Errorf("reading prompt file: %w", err)
	}
	doc := prompt.Parse(string(raw))
	if doc.Title == "" {
		doc.Title = prompt.DefaultTitle
	}
	category := filepath.Dir(relPath)
	if !prompt.ValidCategory(category) {
		category = doc.Category
	}
	result := DeleteResult{RelPath: relPath, Title: doc.Title, Category: category}

	if !confirm {
		span.SetStatus(codes.Ok, "")
		return result, nil
	}

	if l.collection != nil {
		if err := l.collection.DeleteByStem(ctx, prompt.Stem(relPath)); err != nil {
			l.logger.Warn("vector cleanup failed",
				zap.String("path", relPath),
				zap.Error(err))
		}
	}
	if err := l.catalog.RemovePath(relPath); err != nil {
		l.logger.Warn("catalog cleanup failed",
			zap.String("path", relPath),
			zap.Error(err))
	}
	if err := os.Remove(abs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remove failed")
		return result, fmt.Errorf("deleting prompt file: %w", err)
	}

	result.Deleted = true
	l.logger.Info("prompt deleted", zap.String("path", relPath))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// Get returns the raw markdown of one prompt document.
func (l *Library) Get(ctx context.Context, relPath string) (string, error) {
	_, span := tracer.Start(ctx, "library.get")
	defer span.End()

	abs, err := sanitize.DocumentPath(l.promptsDir, relPath)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%q: %w", relPath, ErrNotFound)
		}
		return "", fmt.Errorf("reading prompt file: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return string(raw), nil
}

// ListByCategory returns the relative paths of every document in one
// category, sorted by name.
func (l *Library) ListByCategory(ctx context.Context, category string) ([]string, error) {
	_, span := tracer.Start(ctx, "library.list_by_category")
	defer span.End()

	if !prompt.ValidCategory(category) {
		return nil, fmt.Errorf("%w: %q (valid: %s)",
			ErrInvalidCategory, category, strings.Join(prompt.Categories, ", "))
	}

	entries, err := os.ReadDir(filepath.Join(l.promptsDir, category))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing category: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") || e.Name() == "README.md" {
			continue
		}
		paths = append(paths, filepath.Join(category, e.Name()))
	}
	sort.Strings(paths)
	span.SetStatus(codes.Ok, "")
	return paths, nil
}

// Search runs a semantic query over the collection. A drift check runs
// first, so a collection that fell out of step with the filesystem is
// rebuilt before it serves results.
func (l *Library) Search(ctx context.Context, query string, limit int, category string) ([]vectorstore.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "library.search")
	defer span.End()

	if l.collection == nil {
		return nil, ErrIndexingDisabled
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	if repaired, err := l.drift.CheckAndReindex(ctx); err != nil {
		l.logger.Warn("drift repair failed, searching the stale index", zap.Error(err))
	} else if repaired {
		l.logger.Info("index rebuilt before search")
	}

	results, err := l.collection.Query(ctx, query, limit, category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// Similar finds the closest documents to an existing prompt, excluding
// the prompt itself. The whole file is the query text.
func (l *Library) Similar(ctx context.Context, relPath string, n int) ([]vectorstore.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "library.similar")
	defer span.End()

	if l.collection == nil {
		return nil, ErrIndexingDisabled
	}
	if n <= 0 {
		n = 3
	}

	content, err := l.Get(ctx, relPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	// Query wide: the reference file's own chunks occupy the top spots.
	results, err := l.collection.Query(ctx, content, n+5, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}

	fileName := filepath.Base(relPath)
	similar := make([]vectorstore.SearchResult, 0, n)
	for _, r := range results {
		if r.Metadata.FileName == fileName {
			continue
		}
		similar = append(similar, r)
		if len(similar) == n {
			break
		}
	}
	span.SetStatus(codes.Ok, "")
	return similar, nil
}

// Stats aggregates library statistics. File counts come from the
// filesystem; chunk totals from the collection.
type Stats struct {
	TotalChunks        int
	UniquePrompts      int
	AvgChunksPerPrompt float64
	Categories         map[string]int
	Collection         string
}

func (l *Library) Stats(ctx context.Context) (Stats, error) {
	_, span := tracer.Start(ctx, "library.stats")
	defer span.End()

	files, err := l.promptFiles()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		UniquePrompts: len(files),
		Categories:    make(map[string]int),
	}
	for _, rel := range files {
		category := filepath.Dir(rel)
		if category == "." {
			category = prompt.DefaultCategory
		}
		stats.Categories[category]++
	}
	if l.collection != nil {
		stats.TotalChunks = l.collection.Count()
		stats.Collection = l.collection.Name()
	}
	if stats.UniquePrompts > 0 {
		avg := float64(stats.TotalChunks) / float64(stats.UniquePrompts)
		stats.AvgChunksPerPrompt = math.Round(avg*100) / 100
	}
	span.SetStatus(codes.Ok, "")
	return stats, nil
}

// OrganizeResult summarizes one organized transcript.
type OrganizeResult struct {
	SessionID    string
	Summary      string
	MainCategory string
	Categories   []string
	Saved        []session.SavedPrompt

	// Skipped is set when the session was already in the catalog and
	// nothing was written.
	Skipped bool
}

// OrganizeSession parses a transcript export, files its prompts into the
// library, records the session in the catalog, regenerates the README,
// and forces a reindex so the new documents are searchable immediately.
// Re-organizing a session rewrites the same prompt files but appends a
// second catalog entry; callers that may see the same file twice should
// use OrganizeNewSession.
func (l *Library) OrganizeSession(ctx context.Context, sessionPath string) (OrganizeResult, error) {
	ctx, span := tracer.Start(ctx, "library.organize_session")
	defer span.End()

	tr, err := session.Parse(sessionPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return OrganizeResult{}, err
	}

	return l.organizeTranscript(ctx, span, tr)
}

// OrganizeNewSession is the watcher entry point: it ingests the file only
// if its session id is not yet in the catalog, so re-delivered filesystem
// events and restarts do not duplicate catalog entries.
func (l *Library) OrganizeNewSession(ctx context.Context, sessionPath string) (OrganizeResult, error) {
	ctx, span := tracer.Start(ctx, "library.organize_new_session")
	defer span.End()

	tr, err := session.Parse(sessionPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return OrganizeResult{}, err
	}

	if l.catalog.HasSession(tr.Metadata.SessionID) {
		l.logger.Info("session already organized, skipping",
			zap.String("session_id", tr.Metadata.SessionID),
			zap.String("path", sessionPath))
		span.SetAttributes(attribute.Bool("session.skipped", true))
		span.SetStatus(codes.Ok, "")
		return OrganizeResult{SessionID: tr.Metadata.SessionID, Skipped: true}, nil
	}

	return l.organizeTranscript(ctx, span, tr)
}

func (l *Library) organizeTranscript(ctx context.Context, span trace.Span, tr *session.Transcript) (OrganizeResult, error) {
	saved, err := l.organizer.SavePrompts(tr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return OrganizeResult{}, err
	}

	for _, sp := range saved {
		if err := l.catalog.AddDocument(sp.RelPath, sp.Category, sp.Keywords); err != nil {
			l.logger.Warn("catalog update failed",
				zap.String("path", sp.RelPath),
				zap.Error(err))
		}
	}
	entry := catalog.SessionEntry{
		SessionID:    tr.Metadata.SessionID,
		Started:      tr.Metadata.Started,
		Duration:     tr.Metadata.Duration,
		MainCategory: tr.MainCategory,
		Categories:   tr.Categories,
		PromptCount:  len(tr.Conversations),
		Summary:      tr.Summary,
	}
	if err := l.catalog.AddSession(entry, tr.Keywords()); err != nil {
		l.logger.Warn("session catalog update failed",
			zap.String("session_id", entry.SessionID),
			zap.Error(err))
	}
	if err := l.organizer.WriteReadme(); err != nil {
		l.logger.Warn("README update failed", zap.Error(err))
	}

	if l.collection != nil {
		if _, err := l.Reindex(ctx, true); err != nil {
			l.logger.Warn("post-organize reindex failed", zap.Error(err))
		}
	}

	l.logger.Info("session organized",
		zap.String("session_id", entry.SessionID),
		zap.Int("prompts", len(saved)),
		zap.Strings("categories", tr.Categories))
	span.SetAttributes(attribute.Int("session.prompts", len(saved)))
	span.SetStatus(codes.Ok, "")
	return OrganizeResult{
		SessionID:    tr.Metadata.SessionID,
		Summary:      tr.Summary,
		MainCategory: tr.MainCategory,
		Categories:   tr.Categories,
		Saved:        saved,
	}, nil
}

// Catalog exposes the read side of the JSON index for rendering.
func (l *Library) Catalog() catalog.Snapshot {
	return l.catalog.Snapshot()
}
